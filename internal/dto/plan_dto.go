package dto

import (
	"time"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

// PlanCreateRequest is the payload for creating a grading plan.
// Plan names become directory names, so path separators are rejected.
type PlanCreateRequest struct {
	PlanName    string `json:"plan_name" validate:"required,max=128,excludesall=/\\"`
	Description string `json:"description"`
	Prompt      string `json:"prompt" validate:"required"`
}

// PromptUpdateRequest is the payload for replacing a plan's grading prompt.
type PromptUpdateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// PlanResponse is the API representation of a grading plan.
type PlanResponse struct {
	PlanName    string     `json:"plan_name"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	RecordCount int        `json:"record_count"`
}

// PlanDetailResponse pairs a plan with its per-status record statistics.
type PlanDetailResponse struct {
	Plan  PlanResponse     `json:"plan"`
	Stats models.PlanStats `json:"stats"`
}

// NewPlanResponse converts a plan model into its API representation.
func NewPlanResponse(plan models.Plan, recordCount int) PlanResponse {
	return PlanResponse{
		PlanName:    plan.Name,
		Description: plan.Description,
		Prompt:      plan.Prompt,
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.UpdatedAt,
		RecordCount: recordCount,
	}
}
