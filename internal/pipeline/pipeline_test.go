package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubEngine returns canned text and counts invocations so tests can verify
// the OCR stage is skipped when preprocessing fails.
type stubEngine struct {
	text  string
	err   error
	calls int
	seen  []string
}

func (s *stubEngine) Recognize(ctx context.Context, imagePath string, lang string) (Text, error) {
	s.calls++
	s.seen = append(s.seen, imagePath)
	if s.err != nil {
		return Text{}, s.err
	}
	return Text{Content: s.text, Confidence: 0.9}, nil
}

func (s *stubEngine) Close() error { return nil }

// testPhotoPNG encodes a small image the preprocessor can decode.
func testPhotoPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 128, B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Pipeline", func() {
	var (
		scratchDir string
		engine     *stubEngine
		p          *Pipeline
		data       []byte
		result     Result
		runErr     error
	)

	BeforeEach(func() {
		scratchDir = GinkgoT().TempDir()
		pre, err := NewPreprocessor(scratchDir)
		Expect(err).NotTo(HaveOccurred())
		engine = &stubEngine{}
		p = New(pre, engine, "eng")
		data = testPhotoPNG()
	})

	JustBeforeEach(func() {
		result, runErr = p.Run(context.Background(), data, "image/png")
	})

	scratchIsEmpty := func() {
		entries, err := os.ReadDir(scratchDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	}

	When("the receipt text carries an anchored total and a date", func() {
		BeforeEach(func() {
			engine.text = "Subtotal $10.00 Tax $0.80 Total: $10.80 on 07/04/2024"
		})

		It("should not return an error", func() {
			Expect(runErr).NotTo(HaveOccurred())
		})

		It("should report success", func() {
			Expect(result.Status).To(Equal(StatusSuccess))
		})

		It("should extract the final total", func() {
			Expect(result.Fields.Amount).To(Equal("10.80"))
		})

		It("should extract the purchase date", func() {
			Expect(result.Fields.Date).To(Equal("07/04/2024"))
		})

		It("should return the raw OCR text", func() {
			Expect(result.OCRText).To(Equal(engine.text))
		})

		It("should invoke the engine exactly once", func() {
			Expect(engine.calls).To(Equal(1))
		})

		It("should hand the engine an artifact inside the scratch area", func() {
			Expect(engine.seen).To(HaveLen(1))
			Expect(engine.seen[0]).To(HavePrefix(scratchDir))
		})

		It("should leave the scratch area empty", func() {
			scratchIsEmpty()
		})
	})

	When("the recognized text is garbled with no detectable fields", func() {
		BeforeEach(func() {
			engine.text = "TRG3T ST0RE $99.99"
		})

		It("should not return an error", func() {
			Expect(runErr).NotTo(HaveOccurred())
		})

		It("should report partial failure", func() {
			Expect(result.Status).To(Equal(StatusPartialFailure))
		})

		It("should leave both fields absent", func() {
			Expect(result.Fields.Amount).To(BeEmpty())
			Expect(result.Fields.Date).To(BeEmpty())
		})

		It("should still return the raw OCR text", func() {
			Expect(result.OCRText).To(Equal("TRG3T ST0RE $99.99"))
		})

		It("should leave the scratch area empty", func() {
			scratchIsEmpty()
		})
	})

	When("only the amount is detected", func() {
		BeforeEach(func() {
			engine.text = "Total: $45.00 thanks for visiting"
		})

		It("should report partial failure", func() {
			Expect(result.Status).To(Equal(StatusPartialFailure))
		})

		It("should keep the amount that was found", func() {
			Expect(result.Fields.Amount).To(Equal("45.00"))
			Expect(result.Fields.Date).To(BeEmpty())
		})
	})

	When("the upload is not a decodable image", func() {
		BeforeEach(func() {
			data = []byte("this is not an image at all")
		})

		It("should return a decode error", func() {
			var decodeErr *DecodeError
			Expect(errors.As(runErr, &decodeErr)).To(BeTrue())
		})

		It("should report failure", func() {
			Expect(result.Status).To(Equal(StatusFailure))
		})

		It("should never invoke the engine", func() {
			Expect(engine.calls).To(BeZero())
		})

		It("should leave the scratch area empty", func() {
			scratchIsEmpty()
		})
	})

	When("the engine fails", func() {
		BeforeEach(func() {
			engine.err = errors.New("model crashed")
		})

		It("should return an engine error", func() {
			var engineErr *EngineError
			Expect(errors.As(runErr, &engineErr)).To(BeTrue())
		})

		It("should report failure", func() {
			Expect(result.Status).To(Equal(StatusFailure))
		})

		It("should still clean up the scratch artifact", func() {
			scratchIsEmpty()
		})
	})
})
