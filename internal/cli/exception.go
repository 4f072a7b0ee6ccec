package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/index"
	"github.com/roach88/labelsync/internal/source"
	"github.com/roach88/labelsync/internal/syncer"
)

// classify maps a run failure to an ExitError. Failures the user can act
// on become command errors; anything else is unexpected, and its trace is
// written to logPath first.
func classify(err error, logPath string) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	switch {
	case source.IsCommunicationError(err):
		return &ExitError{Code: ExitCommandError, Kind: CodeSource, Message: "cannot read source", Err: err}
	case index.IsUnknownSource(err):
		return &ExitError{Code: ExitCommandError, Kind: CodeUnknownSource, Message: "cannot select sources", Err: err}
	case dump.IsMalformed(err):
		return &ExitError{Code: ExitCommandError, Kind: CodeMalformedDump, Message: "cannot load restore file", Err: err}
	case index.IsLocked(err):
		return &ExitError{Code: ExitCommandError, Kind: CodeLocked, Message: "cannot lock index", Err: err}
	case errors.Is(err, context.Canceled):
		return &ExitError{Code: ExitFailure, Kind: CodeInterrupted, Message: "interrupted", Err: err}
	}

	msg, kind := "unexpected failure", CodeInternal
	if syncer.IsContractError(err) {
		msg, kind = "source misbehaved", CodeContract
	}
	if werr := writeExceptionLog(logPath, err, debug.Stack()); werr == nil {
		msg = fmt.Sprintf("%s (trace written to %s)", msg, logPath)
	}
	return &ExitError{Code: ExitFailure, Kind: kind, Message: msg, Err: err}
}

// writeExceptionLog overwrites the diagnostic trace file.
func writeExceptionLog(path string, cause any, stack []byte) error {
	if path == "" {
		return errors.New("no exception log configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "error: %v\n", cause)
	for e, ok := cause.(error); ok && e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(f, "  %T: %v\n", e, e)
	}
	fmt.Fprintf(f, "\n%s", stack)
	return f.Close()
}

// recoverPanic writes the trace of a panic to logPath and re-panics.
func recoverPanic(logPath string) {
	if r := recover(); r != nil {
		_ = writeExceptionLog(logPath, r, debug.Stack())
		panic(r)
	}
}
