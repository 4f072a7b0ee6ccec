package harness

import (
	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/syncer"
)

// ScanResult is the outcome of one scan.
type ScanResult struct {
	Summary syncer.Summary `json:"summary"`

	// Err is the error the scan stopped with, or "".
	Err string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Scans []ScanResult `json:"scans"`

	// Final is the index after the last scan, sorted by id.
	Final []message.Record `json:"-"`

	// Errors lists the failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Scans: []ScanResult{}, Errors: []string{}}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
