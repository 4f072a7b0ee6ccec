package syncer

import (
	"errors"
	"fmt"

	"github.com/roach88/labelsync/internal/source"
)

// ContractError reports an event kind a source stream must never produce.
// It indicates a bug in the source, not a runtime condition, and is never
// retried.
type ContractError struct {
	URI  string
	Kind source.EventKind
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("source %s produced unsupported event kind %q", e.URI, e.Kind)
}

// IsContractError reports whether err is a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
