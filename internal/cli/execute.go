package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported through the output formatter, so JSON callers always get
// a JSON document.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	return execute(cmd, opts, args, stdout, stderr)
}

func execute(cmd *cobra.Command, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	_ = f.Error(errorKind(err), err.Error(), nil)
	return GetExitCode(err)
}
