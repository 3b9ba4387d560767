package domain

import "time"

// Execution is one row of the execution status table.
type Execution struct {
	Key
	Name      string    `json:"name"`
	Count     int       `json:"executed"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Completed reports whether the deliverable was executed.
func (e Execution) Completed() bool {
	return e.Count > 0
}

// Status derives the display status of the execution.
func (e Execution) Status() Status {
	if e.Completed() {
		return StatusExecuted
	}
	return StatusAssigned
}
