package journal

import "time"

// Status is the outcome of a run.
type Status string

// Run outcomes.
const (
	StatusOK          Status = "ok"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Run is one manifest run.
type Run struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Roots      []string  `json:"roots"`
	Source     string    `json:"source"`
	Algorithm  string    `json:"algorithm"`
	Format     string    `json:"format"`
	Output     string    `json:"output"`
	Columns    []string  `json:"columns"`
	Entries    int64     `json:"entries"`
	Skipped    int64     `json:"skipped"`
	Unreadable int64     `json:"unreadable"`
	Bytes      int64     `json:"bytes"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// ShortID returns the first 8 characters of the ID.
func (r *Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}
