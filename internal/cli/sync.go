package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/engine"
	"github.com/roach88/labelsync/internal/index"
	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/policy"
	"github.com/roach88/labelsync/internal/syncer"
	"github.com/roach88/labelsync/internal/telemetry"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions

	AsIs    bool
	Restore string // dump file
	Discard bool

	Archive     bool
	Read        bool
	ExtraLabels string

	Optimize   bool
	AllSources bool
	DryRun     bool
}

// SyncResult is the JSON payload of a sync run.
type SyncResult struct {
	Mode     string             `json:"mode"`
	DryRun   bool               `json:"dry_run"`
	Sources  []syncer.Summary   `json:"sources"`
	Totals   telemetry.Counters `json:"totals"`
	Optimize *OptimizeResult    `json:"optimize,omitempty"`
}

// OptimizeResult reports an index optimization.
type OptimizeResult struct {
	Messages int           `json:"messages"`
	Bytes    int64         `json:"bytes"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [flags] [URI...]",
		Short: "Scan sources and reconcile the index",
		Long: `Scan mail sources and reconcile every message's labels with the index.

With no URI, every usual source is scanned; --all-sources scans every
registered source. Sources are scanned one after another, in order.

Modes (at most one):
  --asis          keep the labels the index holds (default)
  --restore=FILE  reinstate labels from a dump written by "labelsync dump"
  --discard       replace indexed labels with the labels the source reports

Exit codes:
  0 - Success
  1 - Unexpected failure (trace written to the exception log)
  2 - Command error (unreachable source, unknown source, bad dump, index locked)

Examples:
  labelsync sync
  labelsync sync --restore=labels.dump --all-sources
  labelsync sync --discard --archive maildir:///home/me/Mail/archive
  labelsync sync --dry-run --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AsIs, "asis", false, "keep indexed labels (default mode)")
	cmd.Flags().StringVar(&opts.Restore, "restore", "", "restore labels from a dump `FILE`")
	cmd.Flags().BoolVar(&opts.Discard, "discard", false, "replace indexed labels with source labels")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "remove the inbox label from scanned messages")
	cmd.Flags().BoolVar(&opts.Read, "read", false, "remove the unread label from scanned messages")
	cmd.Flags().StringVar(&opts.ExtraLabels, "extra-labels", "", "comma-separated labels added to scanned messages")
	cmd.Flags().BoolVar(&opts.Optimize, "optimize", false, "optimize the index after scanning")
	cmd.Flags().BoolVar(&opts.AllSources, "all-sources", false, "scan every registered source")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")

	return cmd
}

// policy returns the label overrides selected by the flags.
func (o *SyncOptions) policy() policy.Options {
	return policy.Options{
		StripInbox:  o.Archive,
		StripUnread: o.Read,
		Extra:       labels.Parse(o.ExtraLabels),
	}
}

// mode resolves the operation mode. A restore dump is loaded in full, so
// a malformed line fails the run before any source is opened.
func (o *SyncOptions) mode() (engine.Mode, error) {
	selected := 0
	for _, set := range []bool{o.AsIs, o.Restore != "", o.Discard} {
		if set {
			selected++
		}
	}
	if selected > 1 {
		return engine.Mode{}, NewExitError(ExitCommandError, "--asis, --restore and --discard are mutually exclusive")
	}

	switch {
	case o.Restore != "":
		f, err := os.Open(o.Restore)
		if err != nil {
			return engine.Mode{}, WrapExitError(ExitCommandError, "cannot open restore file", err)
		}
		defer f.Close()
		snap, err := dump.Parse(f)
		if err != nil {
			return engine.Mode{}, err
		}
		return engine.Restore(snap), nil
	case o.Discard:
		return engine.Discard(), nil
	default:
		return engine.AsIs(), nil
	}
}

func runSync(opts *SyncOptions, uris []string, cmd *cobra.Command) (err error) {
	if opts.AllSources && len(uris) > 0 {
		return NewExitError(ExitCommandError, "--all-sources cannot be combined with source URIs")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	defer recoverPanic(cfg.ExceptionLog)
	defer func() { err = classify(err, cfg.ExceptionLog) }()

	logger := opts.logger(cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	mode, err := opts.mode()
	if err != nil {
		return err
	}
	if snap := mode.Snapshot(); snap != nil {
		logger.Info("restore snapshot loaded", "file", opts.Restore, "messages", snap.Len())
	}

	ix, err := index.Open(cfg.Index.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer func() {
		if closeErr := ix.Close(); closeErr != nil {
			logger.Error("error closing index", "error", closeErr)
		}
	}()

	runID, err := uuid.NewV7()
	if err != nil {
		return err
	}
	if err := ix.Lock(runID.String()); err != nil {
		return err
	}
	defer func() {
		if unlockErr := ix.Unlock(); unlockErr != nil {
			logger.Error("error releasing index lock", "error", unlockErr)
		}
	}()
	logger.Info("index locked", "path", cfg.Index.Path, "run", runID.String())

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	defs, err := ix.Select(ctx, uris, opts.AllSources)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		logger.Warn("no sources selected; register one with add-source")
	}
	selected := make([]string, len(defs))
	for i, def := range defs {
		selected[i] = def.URI
	}

	if !opts.DryRun {
		if err := ix.BeginRun(ctx, runID.String(), mode.String(), selected); err != nil {
			return err
		}
	}

	progress := out.Writer
	if opts.Format == "json" {
		progress = out.GetErrWriter()
	}
	orch := syncer.New(ix, syncer.Options{
		Mode:           mode,
		Policy:         opts.policy(),
		DryRun:         opts.DryRun,
		ReportInterval: cfg.ReportInterval,
		OnReport: func(uri string, r telemetry.Report) {
			fmt.Fprintln(progress, r.String())
		},
		Logger: logger,
	})

	opener := &sourceOpener{cfg: cfg, creds: opts.credentials}
	summaries, runErr := orch.RunAll(ctx, defs, opener.open)
	totals := syncer.Totals(summaries)

	if !opts.DryRun {
		status := index.RunCompleted
		if runErr != nil {
			status = index.RunFailed
		}
		// The run context may be cancelled already.
		if err := ix.FinishRun(context.WithoutCancel(ctx), runID.String(), status, totals); err != nil {
			logger.Error("error recording run", "run", runID.String(), "error", err)
		}
	}

	if opts.Format != "json" {
		printSummaries(out.Writer, summaries)
	}
	if runErr != nil {
		return runErr
	}

	result := SyncResult{
		Mode:    mode.String(),
		DryRun:  opts.DryRun,
		Sources: summaries,
		Totals:  totals,
	}

	if !opts.DryRun {
		if opts.Optimize {
			opt, err := optimize(ctx, ix)
			if err != nil {
				return err
			}
			result.Optimize = opt
			if opts.Format != "json" {
				fmt.Fprintf(out.Writer, "Optimized index: %d messages, %d bytes in %s.\n",
					opt.Messages, opt.Bytes, telemetry.FormatDuration(opt.Elapsed))
			}
		} else if err := ix.Save(ctx); err != nil {
			return err
		}
	}

	if opts.Format == "json" {
		return out.SuccessRun(runID.String(), result)
	}
	if opts.DryRun {
		fmt.Fprintln(out.Writer, "Dry run: the index was not modified.")
	}
	return nil
}

func printSummaries(w io.Writer, summaries []syncer.Summary) {
	for _, s := range summaries {
		for _, line := range s.Lines() {
			fmt.Fprintln(w, line)
		}
	}
}

func optimize(ctx context.Context, ix *index.Index) (*OptimizeResult, error) {
	start := time.Now()
	if err := ix.Optimize(ctx); err != nil {
		return nil, err
	}
	n, err := ix.Size(ctx)
	if err != nil {
		return nil, err
	}
	size, err := ix.DiskSize()
	if err != nil {
		return nil, err
	}
	return &OptimizeResult{Messages: n, Bytes: size, Elapsed: time.Since(start)}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
