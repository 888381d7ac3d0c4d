// Package artifact persists job-scoped pipeline outputs to disk so each run
// leaves an auditable trail of intermediate results and the final report.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Artifact file names, one per pipeline stage.
const (
	QueriesFile  = "step_1_suggested_search_queries.json"
	ResultsFile  = "step_2_search_results.json"
	ProductsFile = "step_3_extracted_products.json"
	ReportDir    = "reports"
	ReportFile   = "procurement_report.html"
)

// Store writes and reads per-job artifacts beneath a root directory. Each job
// gets its own subdirectory keyed by job ID, so concurrent jobs never clobber
// one another.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// JobDir returns the directory holding all artifacts for a job.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// Path returns the absolute path of a named artifact for a job.
func (s *Store) Path(jobID, name string) string {
	return filepath.Join(s.JobDir(jobID), name)
}

// WriteJSON marshals v with indentation and writes it as the named artifact.
// An existing artifact with the same name is replaced, which keeps re-runs
// idempotent.
func (s *Store) WriteJSON(jobID, name string, v any) (string, error) {
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "artifact: create job directory")
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "artifact: marshal")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "artifact: write")
	}
	return path, nil
}

// ReadJSON reads the named artifact into v.
func (s *Store) ReadJSON(jobID, name string, v any) error {
	data, err := os.ReadFile(s.Path(jobID, name))
	if err != nil {
		return eris.Wrap(err, "artifact: read")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrap(err, "artifact: unmarshal")
	}
	return nil
}

// WriteReport writes the HTML report for a job and returns its path. The
// write truncates any previous report, so regenerating a job's report always
// leaves exactly one file.
func (s *Store) WriteReport(jobID string, html []byte) (string, error) {
	dir := filepath.Join(s.JobDir(jobID), ReportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "artifact: create report directory")
	}

	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", eris.Wrap(err, "artifact: write report")
	}
	return path, nil
}

// ReportPath returns where the job's report lives on disk, whether or not it
// exists yet.
func (s *Store) ReportPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), ReportDir, ReportFile)
}

// ReportURL returns the URL path under which the serve command exposes the
// job's report.
func (s *Store) ReportURL(jobID string) string {
	return "/reports/" + jobID + "/" + ReportFile
}

// Exists reports whether the named artifact exists for the job.
func (s *Store) Exists(jobID, name string) bool {
	_, err := os.Stat(s.Path(jobID, name))
	return err == nil
}

// ReportExists reports whether the job's HTML report is on disk.
func (s *Store) ReportExists(jobID string) bool {
	_, err := os.Stat(s.ReportPath(jobID))
	return err == nil
}
