package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labelsync/internal/source/imap"
)

// SetPasswordOptions holds flags for the set-password command.
type SetPasswordOptions struct {
	*RootOptions
	Delete bool
}

// NewSetPasswordCommand creates the set-password command.
func NewSetPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetPasswordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-password [flags] URI",
		Short: "Store the password of an IMAP source in the keyring",
		Long: `Store the password of an IMAP account in the keyring.

The password is read from the first line of standard input.

Examples:
  labelsync set-password imaps://me@mail.example.com/INBOX < password.txt
  labelsync set-password --delete imaps://me@mail.example.com/INBOX`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPassword(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "remove the stored password")

	return cmd
}

func runSetPassword(opts *SetPasswordOptions, uri string, cmd *cobra.Command) error {
	ep, err := imap.ParseURI(uri)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid source", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	store, err := opts.credentials(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open keyring", err)
	}

	out := opts.formatter(cmd)
	account := ep.User + "@" + ep.Host

	if opts.Delete {
		if err := store.DeletePassword(ep.User, ep.Host); err != nil {
			return WrapExitError(ExitCommandError, "cannot delete password", err)
		}
		return out.Success(fmt.Sprintf("Deleted password for %s.", account))
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return WrapExitError(ExitCommandError, "no password on standard input", err)
		}
		return NewExitError(ExitCommandError, "no password on standard input")
	}
	if err := store.SetPassword(ep.User, ep.Host, password); err != nil {
		return WrapExitError(ExitFailure, "cannot store password", err)
	}
	return out.Success(fmt.Sprintf("Stored password for %s.", account))
}
