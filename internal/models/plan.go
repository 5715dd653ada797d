package models

import "time"

// Plan is a named grading configuration submissions are grouped under.
// The plan name doubles as the storage partition key.
type Plan struct {
	Name        string     `json:"plan_name"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// PlanStats aggregates record counts per status for one plan.
type PlanStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}
