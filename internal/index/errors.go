package index

import (
	"errors"
	"fmt"
)

// UnknownSourceError reports a source URI that was never registered.
type UnknownSourceError struct {
	URI string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q (register it with add-source)", e.URI)
}

// IsUnknownSource reports whether err is an UnknownSourceError.
func IsUnknownSource(err error) bool {
	var use *UnknownSourceError
	return errors.As(err, &use)
}

// SourceExistsError reports an attempt to register a source twice.
type SourceExistsError struct {
	URI string
}

func (e *SourceExistsError) Error() string {
	return fmt.Sprintf("source %q is already registered", e.URI)
}

// LockedError reports that another run holds the index lock.
type LockedError struct {
	Path   string
	Holder string
}

func (e *LockedError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("index is locked (%s exists)", e.Path)
	}
	return fmt.Sprintf("index is locked by %s (remove %s if that run is gone)", e.Holder, e.Path)
}

// IsLocked reports whether err is a LockedError.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}
