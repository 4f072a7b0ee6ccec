package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/labelsync/internal/dump"
)

// Render returns the transcript of a result: the summary lines of every
// scan, then the final index in dump format.
func Render(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", name)
	for i, scan := range result.Scans {
		fmt.Fprintf(&buf, "## scan %d\n", i+1)
		for _, line := range scan.Summary.Lines() {
			fmt.Fprintln(&buf, line)
		}
		if scan.Err != "" {
			fmt.Fprintf(&buf, "error: %s\n", scan.Err)
		}
	}

	fmt.Fprintln(&buf, "## index")
	entries := make([]dump.Entry, 0, len(result.Final))
	for _, r := range result.Final {
		entries = append(entries, dump.Entry{ID: r.ID, Labels: r.Labels})
	}
	if err := dump.Write(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	out, err := Render(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
	return nil
}
