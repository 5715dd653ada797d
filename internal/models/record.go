package models

import "time"

// Record is one student submission and its grading lifecycle.
type Record struct {
	ID             string    `json:"id"`
	Student        string    `json:"student"`
	Images         []string  `json:"images"`
	Status         string    `json:"status"`
	OCRText        string    `json:"ocr_text,omitempty"`
	Result         *string   `json:"result"`
	PreviousResult *string   `json:"previous_result,omitempty"`
	Error          *string   `json:"error,omitempty"`
	RegradeCount   int       `json:"regrade_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	// RecordStatusPending indicates the record is waiting for a grading task.
	RecordStatusPending = "pending"
	// RecordStatusProcessing indicates a grading task is in flight.
	RecordStatusProcessing = "processing"
	// RecordStatusDone indicates grading completed successfully.
	RecordStatusDone = "done"
	// RecordStatusFailed indicates the last grading attempt failed.
	RecordStatusFailed = "failed"
)

// IsTerminal reports whether the record finished its current grading attempt.
// Only terminal records qualify for a regrade.
func (r Record) IsTerminal() bool {
	return r.Status == RecordStatusDone || r.Status == RecordStatusFailed
}
