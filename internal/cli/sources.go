package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labelsync/internal/index"
	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/source"
)

// AddSourceOptions holds flags for the add-source command.
type AddSourceOptions struct {
	*RootOptions
	Unusual bool
	Archive bool
	Labels  string
}

// SourceInfo is the JSON form of a registered source.
type SourceInfo struct {
	URI      string   `json:"uri"`
	Usual    bool     `json:"usual"`
	Archived bool     `json:"archived"`
	Labels   []string `json:"labels"`
}

func sourceInfo(def source.Definition) SourceInfo {
	return SourceInfo{
		URI:      def.URI,
		Usual:    def.Usual,
		Archived: def.Archived,
		Labels:   def.Labels.Sorted(),
	}
}

// NewAddSourceCommand creates the add-source command.
func NewAddSourceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddSourceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-source [flags] URI",
		Short: "Register a mail source",
		Long: `Register a mail source with the index.

Supported URIs:
  maildir://PATH
  mbox://PATH
  imap://user@host[:port]/MAILBOX   (STARTTLS)
  imaps://user@host[:port]/MAILBOX  (TLS)

Examples:
  labelsync add-source maildir:///home/me/Mail/inbox
  labelsync add-source --archive --labels=lists mbox:///var/mail/lists.mbox
  labelsync add-source --unusual imaps://me@mail.example.com/Archive`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddSource(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Unusual, "unusual", false, "scan only when named or with --all-sources")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "do not give new messages the inbox label")
	cmd.Flags().StringVar(&opts.Labels, "labels", "", "comma-separated labels given to every message")

	return cmd
}

func runAddSource(opts *AddSourceOptions, uri string, cmd *cobra.Command) error {
	if err := validateURI(uri); err != nil {
		return WrapExitError(ExitCommandError, "invalid source", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ix, err := index.Open(cfg.Index.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer ix.Close()

	def := source.Definition{
		URI:      uri,
		Usual:    !opts.Unusual,
		Archived: opts.Archive,
		Labels:   labels.Parse(opts.Labels),
	}
	if err := ix.AddSource(cmd.Context(), def); err != nil {
		var exists *index.SourceExistsError
		if errors.As(err, &exists) {
			return WrapExitError(ExitCommandError, "cannot add source", err)
		}
		return WrapExitError(ExitFailure, "cannot add source", err)
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(sourceInfo(def))
	}
	return out.Success(fmt.Sprintf("Added source %s.", uri))
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sources",
		Short:         "List registered sources",
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(rootOpts, cmd)
		},
	}
	return cmd
}

func runSources(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ix, err := index.Open(cfg.Index.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer ix.Close()

	defs, err := ix.Sources(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list sources", err)
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		infos := make([]SourceInfo, 0, len(defs))
		for _, d := range defs {
			infos = append(infos, sourceInfo(d))
		}
		return out.Success(infos)
	}

	if len(defs) == 0 {
		fmt.Fprintln(out.Writer, "No sources registered.")
		return nil
	}
	for _, d := range defs {
		fmt.Fprintln(out.Writer, formatSource(d))
	}
	return nil
}

// formatSource renders one line of the source listing:
//
//	maildir:///mail/inbox usual labels=work,lists
func formatSource(d source.Definition) string {
	parts := []string{d.URI}
	if d.Usual {
		parts = append(parts, "usual")
	} else {
		parts = append(parts, "unusual")
	}
	if d.Archived {
		parts = append(parts, "archived")
	}
	if d.Labels.Len() > 0 {
		parts = append(parts, "labels="+strings.Join(d.Labels.Sorted(), ","))
	}
	return strings.Join(parts, " ")
}
