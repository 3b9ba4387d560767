package http

import (
	"time"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Details   any       `json:"details,omitempty"`
}

// KeyBody names one assignment. Month accepts "9월", "25FW/9월" or "2025-09".
type KeyBody struct {
	ID    string `json:"id"`
	Brand string `json:"brand"`
	Month string `json:"month"`
}

// KeysBody names several assignments.
type KeysBody struct {
	Keys []KeyBody `json:"keys"`
}

// AutoBody requests an automatic assignment run.
type AutoBody struct {
	Month      string         `json:"month"`
	Quantities map[string]int `json:"quantities"`
}

// ResetBody clears one month, or everything when Month is empty.
type ResetBody struct {
	Month   string `json:"month,omitempty"`
	Cascade bool   `json:"cascade"`
}

// URLBody sets the proof URL of one execution.
type URLBody struct {
	KeyBody
	URL string `json:"url"`
}

// TargetBody sets one monthly target.
type TargetBody struct {
	Month  string `json:"month"`
	Brand  string `json:"brand"`
	Target int    `json:"target"`
}

// PlanBody runs the season plan, optionally for some months only.
type PlanBody struct {
	Season string   `json:"season,omitempty"`
	Months []string `json:"months,omitempty"`
}

// CountResponse reports how many rows an operation changed.
type CountResponse struct {
	Changed int      `json:"changed"`
	Errors  []string `json:"errors,omitempty"`
}
