package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Preprocessor normalizes raw receipt photos for OCR: single-channel
// grayscale plus a contrast boost so varying lighting produces more uniform
// input. No geometric correction (deskew/crop) is performed.
type Preprocessor struct {
	scratchDir string
}

// NewPreprocessor creates a Preprocessor writing artifacts into scratchDir.
func NewPreprocessor(scratchDir string) (*Preprocessor, error) {
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return &Preprocessor{scratchDir: scratchDir}, nil
}

// Preprocess decodes the uploaded bytes, normalizes them and writes a PNG
// artifact to the scratch area. The artifact name carries a UUID so
// concurrent runs never collide. The caller owns the returned path and is
// responsible for removing it once the OCR stage has consumed it.
//
// Decode failures return a *DecodeError and leave nothing behind.
func (p *Preprocessor) Preprocess(data []byte, contentType string) (string, error) {
	img, err := decodeImage(data, contentType)
	if err != nil {
		return "", &DecodeError{Err: err}
	}

	gray := imaging.Grayscale(img)
	normalized := imaging.AdjustContrast(gray, 20)

	path := filepath.Join(p.scratchDir, fmt.Sprintf("receipt-%s.png", uuid.NewString()))
	if err := imaging.Save(normalized, path); err != nil {
		// a partially written file must not leak into the scratch area
		os.Remove(path)
		return "", fmt.Errorf("saving preprocessed image: %w", err)
	}
	return path, nil
}

// ScratchDir returns the directory preprocessed artifacts are written to.
func (p *Preprocessor) ScratchDir() string {
	return p.scratchDir
}
