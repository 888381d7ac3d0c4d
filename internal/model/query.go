package model

// QuerySet is the ordered list of search queries suggested for a job.
// Produced once per job and immutable afterward.
type QuerySet struct {
	Queries []string `json:"queries"`
}

// Validate enforces 1 <= len(queries) <= max with no empty entries. A
// violation fails the whole stage; query sets have no per-item tolerance.
func (q QuerySet) Validate(max int) error {
	if len(q.Queries) == 0 {
		return invalid("queries", "at least one query required")
	}
	if max > 0 && len(q.Queries) > max {
		return invalid("queries", "exceeds configured maximum")
	}
	for _, s := range q.Queries {
		if s == "" {
			return invalid("queries", "empty query string")
		}
	}
	return nil
}
