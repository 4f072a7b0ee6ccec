package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labelsync/internal/dump"
)

// Scenario defines one sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode is asis (default), discard or restore.
	Mode string `yaml:"mode,omitempty"`

	// Restore holds the restore dump, in dump format. Restore mode only.
	Restore string `yaml:"restore,omitempty"`

	Archive     bool     `yaml:"archive,omitempty"`
	Read        bool     `yaml:"read,omitempty"`
	ExtraLabels []string `yaml:"extra_labels,omitempty"`
	DryRun      bool     `yaml:"dry_run,omitempty"`

	Source SourceSpec `yaml:"source"`

	// Index seeds the index before the first scan.
	Index []RecordSpec `yaml:"index,omitempty"`

	// Scans are run in order against the same index.
	Scans []ScanSpec `yaml:"scans"`

	// FinalIndex, when non-nil, must equal the index after the last scan.
	FinalIndex []RecordSpec `yaml:"final_index,omitempty"`
}

// SourceSpec describes the scanned source.
type SourceSpec struct {
	URI string `yaml:"uri"`

	// Labels are added to every message the source holds.
	Labels []string `yaml:"labels,omitempty"`
}

// RecordSpec is a message as the source holds it or as the index stores it.
type RecordSpec struct {
	ID     string   `yaml:"id"`
	Info   string   `yaml:"info"`
	Labels []string `yaml:"labels"`
}

// ScanSpec is one scan of the source.
type ScanSpec struct {
	// Messages is what the source holds during this scan, in source order.
	Messages []RecordSpec `yaml:"messages"`

	// Expect, when set, must equal the scan's counters.
	Expect *CountersSpec `yaml:"expect,omitempty"`

	// Error, when set, must be a substring of the scan's error.
	Error string `yaml:"error,omitempty"`
}

// CountersSpec is the expected outcome of a scan.
type CountersSpec struct {
	Scanned  int `yaml:"scanned"`
	Added    int `yaml:"added"`
	Updated  int `yaml:"updated"`
	Deleted  int `yaml:"deleted"`
	Restored int `yaml:"restored"`
}

// Mode names.
const (
	ModeAsIs    = "asis"
	ModeDiscard = "discard"
	ModeRestore = "restore"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Source.URI == "" {
		return fmt.Errorf("source.uri is required")
	}
	if len(s.Scans) == 0 {
		return fmt.Errorf("scans list is required and must be non-empty")
	}

	switch s.Mode {
	case "", ModeAsIs, ModeDiscard:
		if s.Restore != "" {
			return fmt.Errorf("restore dump given for mode %q", s.mode())
		}
	case ModeRestore:
		if _, err := dump.Parse(strings.NewReader(s.Restore)); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q (want asis, discard or restore)", s.Mode)
	}

	check := func(where string, recs []RecordSpec) error {
		seen := make(map[string]struct{})
		for i, r := range recs {
			if r.ID == "" {
				return fmt.Errorf("%s[%d]: id is required", where, i)
			}
			if _, dup := seen[r.ID]; dup {
				return fmt.Errorf("%s[%d]: duplicate id %q", where, i, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
		return nil
	}
	if err := check("index", s.Index); err != nil {
		return err
	}
	if err := check("final_index", s.FinalIndex); err != nil {
		return err
	}
	for i, scan := range s.Scans {
		if err := check(fmt.Sprintf("scans[%d].messages", i), scan.Messages); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) mode() string {
	if s.Mode == "" {
		return ModeAsIs
	}
	return s.Mode
}
