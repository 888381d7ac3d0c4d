package model

import "time"

// JobStatus represents the current state of a procurement job.
type JobStatus string

const (
	JobStatusInit       JobStatus = "init"
	JobStatusQueries    JobStatus = "query_recommendation"
	JobStatusSearch     JobStatus = "search"
	JobStatusExtraction JobStatus = "extraction"
	JobStatusReport     JobStatus = "report"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// DefaultWebsites is the fixed allow-list applied when a request names no
// target sites.
var DefaultWebsites = []string{
	"www.amazon.com", "www.ebay.com", "www.aliexpress.com",
	"www.walmart.com", "www.bestbuy.com", "www.newegg.com",
	"www.target.com", "www.jumia.com", "www.noon.com", "www.etsy.com",
}

// Job is one procurement-research request. It lives for the duration of a
// single pipeline run; only its artifacts outlive it.
type Job struct {
	ID             string    `json:"id"`
	ProductName    string    `json:"product_name"`
	Country        string    `json:"country"`
	Language       string    `json:"language"`
	Websites       []string  `json:"websites"`
	ResultCount    int       `json:"result_count"`
	ScoreThreshold float64   `json:"score_threshold"`
	MaxKeywords    int       `json:"max_keywords"`
	CompanyContext string    `json:"company_context,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate rejects malformed job submissions before any stage runs.
func (j *Job) Validate() error {
	if j.ProductName == "" {
		return invalid("product_name", "required")
	}
	if j.Country == "" {
		return invalid("country", "required")
	}
	if j.ResultCount <= 0 {
		return invalid("result_count", "must be a positive integer")
	}
	if j.MaxKeywords <= 0 {
		return invalid("max_keywords", "must be a positive integer")
	}
	if j.ScoreThreshold < 0 || j.ScoreThreshold > 1 {
		return invalid("score_threshold", "must be in [0, 1]")
	}
	return nil
}

// JobRecord is the persisted audit row for a job.
type JobRecord struct {
	ID        string     `json:"id"`
	Job       Job        `json:"job"`
	Status    JobStatus  `json:"status"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JobResult summarizes a completed pipeline run.
type JobResult struct {
	Queries    int           `json:"queries"`
	Results    int           `json:"results"`
	Products   int           `json:"products"`
	Extracted  int           `json:"extracted"`
	ReportPath string        `json:"report_path"`
	ReportURL  string        `json:"report_url"`
	Stages     []StageResult `json:"stages"`
}
