package ai

import "context"

// GradeInput contains the artefacts needed to grade one homework submission.
type GradeInput struct {
	Student        string
	Prompt         string
	RecognizedText string
	Images         [][]byte
}

// Grader describes an AI model capable of grading a homework submission.
// The returned text is Markdown intended for direct display.
type Grader interface {
	Grade(ctx context.Context, input GradeInput) (string, error)
}
