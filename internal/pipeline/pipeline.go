package pipeline

import (
	"context"
	"log/slog"
	"os"
)

// Status reports how far a pipeline run got.
type Status string

const (
	// StatusSuccess means text was recognized and both fields were found.
	StatusSuccess Status = "success"
	// StatusPartialFailure means text was recognized but one or both fields
	// could not be detected; the caller should fall back to manual entry.
	StatusPartialFailure Status = "partial_failure"
	// StatusFailure means the run aborted before or during recognition.
	StatusFailure Status = "failure"
)

// Result is the envelope returned to the caller. It owns its values; by the
// time a Result is returned the run's scratch artifact is already removed.
type Result struct {
	OCRText string `json:"ocr_text"`
	Fields  Fields `json:"fields"`
	Status  Status `json:"status"`
}

// Pipeline sequences preprocessing, OCR recognition and field extraction for
// a single uploaded image. Runs are independent; concurrent runs share only
// the scratch directory, where artifact names never collide.
type Pipeline struct {
	preprocessor *Preprocessor
	engine       Engine
	lang         string
}

// New creates a Pipeline using the given preprocessor and OCR engine. lang is
// the language hint passed to the engine on every run.
func New(preprocessor *Preprocessor, engine Engine, lang string) *Pipeline {
	if lang == "" {
		lang = "eng"
	}
	return &Pipeline{
		preprocessor: preprocessor,
		engine:       engine,
		lang:         lang,
	}
}

// Run executes preprocess -> recognize -> extract over one uploaded image.
//
// A decode failure aborts the run before any OCR call and returns a
// *DecodeError; an engine failure aborts it with an *EngineError. In both
// cases the result status is StatusFailure. Extraction cannot fail: absent
// fields downgrade the status to StatusPartialFailure.
//
// Run blocks for image I/O and recognition; callers apply their own timeout
// through ctx. The preprocessed artifact is removed once the engine has
// consumed it, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, data []byte, contentType string) (Result, error) {
	artifact, err := p.preprocessor.Preprocess(data, contentType)
	if err != nil {
		return Result{Status: StatusFailure}, err
	}
	defer func() {
		if err := os.Remove(artifact); err != nil {
			slog.Warn("Failed to remove scratch artifact", "path", artifact, "error", err)
		}
	}()

	text, err := p.engine.Recognize(ctx, artifact, p.lang)
	if err != nil {
		return Result{Status: StatusFailure}, &EngineError{Err: err}
	}

	fields := Extract(text.Content)

	status := StatusSuccess
	if fields.Amount == "" || fields.Date == "" {
		status = StatusPartialFailure
	}

	return Result{
		OCRText: text.Content,
		Fields:  fields,
		Status:  status,
	}, nil
}
