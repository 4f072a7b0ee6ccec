package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

type lockFile struct {
	path  string
	runID string
}

// LockPath returns the lock file guarding the index at dbPath.
func LockPath(dbPath string) string { return dbPath + ".lock" }

// Lock takes the exclusive run lock, recording runID, the process id and
// the host name in the lock file. It fails with *LockedError while another
// run holds the lock. Locking an index this process already locked is an
// error.
func (ix *Index) Lock(runID string) error {
	if ix.lock != nil {
		return fmt.Errorf("index already locked by this process (run %s)", ix.lock.runID)
	}

	path := LockPath(ix.path)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		holder, _ := os.ReadFile(path)
		return &LockedError{Path: path, Holder: strings.TrimSpace(string(holder))}
	}
	if err != nil {
		return fmt.Errorf("create lock file: %w", err)
	}

	host, _ := os.Hostname()
	_, werr := fmt.Fprintf(f, "run %s pid %d host %s\n", runID, os.Getpid(), host)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write lock file: %w", err)
	}

	ix.lock = &lockFile{path: path, runID: runID}
	return nil
}

// Unlock releases the run lock. Unlocking an index that is not locked is a
// no-op.
func (ix *Index) Unlock() error {
	if ix.lock == nil {
		return nil
	}
	path := ix.lock.path
	ix.lock = nil
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Locked reports whether this process holds the run lock.
func (ix *Index) Locked() bool { return ix.lock != nil }
