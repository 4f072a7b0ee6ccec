package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/labelsync/internal/config"
	"github.com/roach88/labelsync/internal/credential"
	"github.com/roach88/labelsync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigPath is the configuration file; empty selects config.DefaultPath.
	ConfigPath string

	// IndexPath overrides the index location from the configuration.
	IndexPath string

	// OpenCredentials allows overriding the keyring (for testing).
	// If nil, the keyring named in the configuration is opened.
	OpenCredentials func(cfg *config.Config) (*credential.Store, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the labelsync CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "labelsync",
		Short: "Keep a mail index in step with its sources",
		Long: `labelsync scans mail sources (maildir, mbox, IMAP) and reconciles the
labels of every message with a local index, adding, updating and deleting
records as the sources change.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "configuration file (default ~/.config/labelsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.IndexPath, "index", "", "index database (overrides the configuration)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewAddSourceCommand(opts))
	cmd.AddCommand(NewSourcesCommand(opts))
	cmd.AddCommand(NewSetPasswordCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// exactArgs is cobra.ExactArgs reporting a command error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// noArgs is cobra.NoArgs reporting a command error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	return nil
}

// loadConfig reads the configuration and applies the command-line
// overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.IndexPath != "" {
		cfg.Index.Path = o.IndexPath
	}
	return cfg, nil
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	return logging.New(w, o.Verbose)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) credentials(cfg *config.Config) (*credential.Store, error) {
	if o.OpenCredentials != nil {
		return o.OpenCredentials(cfg)
	}
	return credential.Open(cfg.IMAP.KeyringService, cfg.IMAP.KeyringDir)
}
