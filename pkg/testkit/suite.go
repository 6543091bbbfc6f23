package testkit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Suite is a master file grouping scenario arrays by endpoint:
//
//	{"groups": [
//	  {"name": "Admin creates products", "method": "POST", "url": "/api/admin/products",
//	   "as": "admin", "scenarios": "admin/create_product.json"}
//	]}
//
// Scenarios inherit method, url and caller from their group unless they
// set their own.
type Suite struct {
	Groups []SuiteGroup `json:"groups"`
}

type SuiteGroup struct {
	Name      string `json:"name"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	As        string `json:"as"`
	Scenarios string `json:"scenarios"` // relative to the master file
}

func LoadSuite(path string) (*Suite, string, error) {
	var s Suite
	dir, err := readJSON(path, &s)
	if err != nil {
		return nil, "", err
	}
	return &s, dir, nil
}

// RunSuite runs the groups of the master file at path in order, sharing
// captured variables.
func (r *Runner) RunSuite(t *testing.T, path string) {
	t.Helper()
	suite, dir, err := LoadSuite(path)
	require.NoError(t, err)
	require.NotEmpty(t, suite.Groups, "suite %s has no groups", path)

	for _, g := range suite.Groups {
		t.Run(g.Name, func(t *testing.T) {
			scenarios, err := LoadScenarios(filepath.Join(dir, g.Scenarios))
			require.NoError(t, err)
			for _, s := range scenarios {
				g.apply(s)
				t.Run(s.Name, func(t *testing.T) { r.Execute(t, s) })
			}
		})
	}
}

func (g SuiteGroup) apply(s *Scenario) {
	if s.Request.URL == "" {
		s.Request.URL = "/" + strings.TrimPrefix(g.URL, "/")
	}
	if s.Request.Method == "" {
		s.Request.Method = g.Method
	}
	if s.Request.As == "" {
		s.Request.As = g.As
	}
}
