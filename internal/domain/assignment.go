package domain

import "time"

// Source records how an assignment was made.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
	SourceUpload Source = "upload"
)

// Counters is the quota picture of an influencer/brand pair at a moment in time.
type Counters struct {
	BrandContract  int `json:"brand_contract"`
	BrandExecuted  int `json:"brand_executed"`
	BrandRemaining int `json:"brand_remaining"`
	TotalContract  int `json:"total_contract"`
	TotalExecuted  int `json:"total_executed"`
	TotalRemaining int `json:"total_remaining"`
}

// Assignment is one row of the assignment history.
type Assignment struct {
	Key
	Name           string    `json:"name"`
	Followers      int       `json:"followers"`
	UnitFee        int       `json:"unit_fee"`
	SecondaryUsage string    `json:"sec_usage,omitempty"`
	Counters       Counters  `json:"counters"`
	Source         Source    `json:"source,omitempty"`
	BatchID        string    `json:"batch_id,omitempty"`
	AssignedAt     time.Time `json:"assigned_at,omitempty"`
}
