package harness

import (
	"fmt"
	"path/filepath"
	"sort"
)

// SuiteResult aggregates the outcome of every scenario in a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// ScenarioFiles returns the *.yaml files of dir, sorted.
func ScenarioFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in dir. A scenario that cannot be
// loaded or set up counts as failed.
func RunSuite(dir string) (*SuiteResult, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list scenarios in %s: %w", dir, err)
	}

	res := &SuiteResult{}
	for _, path := range paths {
		res.Total++

		s, err := LoadScenario(path)
		if err != nil {
			res.fail(filepath.Base(path), path, err.Error())
			continue
		}
		r, err := Run(s)
		if err != nil {
			res.fail(s.Name, path, err.Error())
			continue
		}
		if !r.Pass {
			res.fail(s.Name, path, r.Errors...)
			continue
		}
		res.Passed++
	}
	return res, nil
}

func (r *SuiteResult) fail(name, path string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Name: name, Path: path, Errors: errs})
}
