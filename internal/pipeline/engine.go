package pipeline

import "context"

// Text is the raw output of an OCR engine: recognized text plus a rough
// confidence score in 0..1. The confidence is carried for callers but not
// used by field extraction.
type Text struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Engine defines the interface for OCR backends. Implementations receive the
// path of a preprocessed image in the scratch area and a language hint
// (tesseract-style code, e.g. "eng").
type Engine interface {
	// Recognize converts a preprocessed image into plain text
	Recognize(ctx context.Context, imagePath string, lang string) (Text, error)
	// Close releases any resources held by the engine
	Close() error
}
