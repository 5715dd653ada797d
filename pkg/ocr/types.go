package ocr

import "context"

// Recognizer describes a text-recognition provider. Implementations wrap
// one vendor API and are selected by configuration.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}
