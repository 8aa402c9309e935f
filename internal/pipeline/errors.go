package pipeline

import "fmt"

// DecodeError indicates the uploaded bytes could not be decoded as an image.
// Runs failing here never reach the OCR engine.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EngineError indicates the OCR engine failed (timeout, crash, unreadable
// input). The run is aborted; the caller may retry with the same or a
// re-captured image.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("recognizing text: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
