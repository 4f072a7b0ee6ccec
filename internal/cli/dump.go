package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/index"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Output string
}

// DumpResult is the JSON payload of a dump written to a file.
type DumpResult struct {
	Output   string `json:"output"`
	Messages int    `json:"messages"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the labels of every indexed message",
		Long: `Write one line per indexed message, "<id> (<labels>)", sorted by id.

The output is the input format of "labelsync sync --restore".

Examples:
  labelsync dump > labels.dump
  labelsync dump -o labels.dump`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to `FILE` instead of stdout")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	ix, err := index.Open(cfg.Index.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer ix.Close()

	entries, err := ix.Entries(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read index", err)
	}

	if opts.Output == "" {
		if err := dump.Write(cmd.OutOrStdout(), entries); err != nil {
			return WrapExitError(ExitFailure, "failed to write dump", err)
		}
		return nil
	}

	if err := writeFileAtomic(opts.Output, func(w io.Writer) error {
		return dump.Write(w, entries)
	}); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to write %s", opts.Output), err)
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(DumpResult{Output: opts.Output, Messages: len(entries)})
	}
	out.VerboseLog("wrote %d messages to %s", len(entries), opts.Output)
	return nil
}

// writeFileAtomic writes path through a temporary file in the same
// directory, so readers never see a partial dump.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
