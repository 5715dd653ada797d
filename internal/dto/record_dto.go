package dto

import (
	"time"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

// UploadResponse acknowledges a homework upload. Grading happens
// asynchronously, so the status is always pending at this point.
type UploadResponse struct {
	RecordID string `json:"record_id"`
	Status   string `json:"status"`
}

// RegradeRequest selects the records to regrade. A nil or empty list
// targets every record in the plan.
type RegradeRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// RegradeResponse reports how many records actually re-entered the queue.
type RegradeResponse struct {
	AffectedCount int `json:"affected_count"`
}

// RecordResponse is the full API representation of a grading record.
type RecordResponse struct {
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

// RecordListItem is the trimmed view returned by record listings, which
// clients poll frequently.
type RecordListItem struct {
	ID           string    `json:"id"`
	Student      string    `json:"student"`
	Status       string    `json:"status"`
	RegradeCount int       `json:"regrade_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRecordResponse converts a record model into its API representation.
func NewRecordResponse(record models.Record) RecordResponse {
	return RecordResponse{
		ID:             record.ID,
		Student:        record.Student,
		Images:         record.Images,
		Status:         record.Status,
		OCRText:        record.OCRText,
		Result:         record.Result,
		PreviousResult: record.PreviousResult,
		Error:          record.Error,
		RegradeCount:   record.RegradeCount,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

// NewRecordListItems converts records into the trimmed listing view.
func NewRecordListItems(records []models.Record) []RecordListItem {
	items := make([]RecordListItem, 0, len(records))
	for _, record := range records {
		items = append(items, RecordListItem{
			ID:           record.ID,
			Student:      record.Student,
			Status:       record.Status,
			RegradeCount: record.RegradeCount,
			CreatedAt:    record.CreatedAt,
			UpdatedAt:    record.UpdatedAt,
		})
	}
	return items
}
