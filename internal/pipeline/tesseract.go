package pipeline

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Engine interface on top of a local Tesseract
// installation. It is the default backend: offline, deterministic, cheap.
type Tesseract struct{}

// NewTesseract creates a Tesseract engine.
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

// Recognize runs Tesseract over the preprocessed image. A fresh client is
// created per call; gosseract clients are not safe for concurrent use and
// the pipeline runs one recognition per request.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string, lang string) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return Text{}, fmt.Errorf("setting tesseract language %q: %w", lang, err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return Text{}, fmt.Errorf("setting tesseract image: %w", err)
	}

	content, err := client.Text()
	if err != nil {
		return Text{}, fmt.Errorf("running tesseract: %w", err)
	}

	return Text{
		Content:    content,
		Confidence: heuristicConfidence(content),
	}, nil
}

// Close releases engine resources (no-op, clients are per-call).
func (t *Tesseract) Close() error {
	return nil
}
