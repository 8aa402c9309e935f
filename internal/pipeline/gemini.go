package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks the vision model for a verbatim transcription. Field
// extraction happens locally, so the model must not interpret or reformat.
const transcribePrompt = `Transcribe all text visible in this receipt image exactly as it appears, line by line, top to bottom. Include every label, amount, and date. Do not interpret, summarize, or reformat anything. Do not use markdown. Return only the transcribed text.`

// Gemini implements the Engine interface using Google Gemini vision models
// as a hosted OCR backend.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini engine.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Recognize sends the preprocessed PNG to Gemini and returns the transcribed
// text. The language hint is folded into the prompt; Gemini has no explicit
// language parameter.
func (g *Gemini) Recognize(ctx context.Context, imagePath string, lang string) (Text, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return Text{}, fmt.Errorf("reading preprocessed image: %w", err)
	}

	prompt := transcribePrompt
	if lang != "" {
		prompt = fmt.Sprintf("%s The text is primarily in language code %q.", transcribePrompt, lang)
	}

	// preprocessed artifacts are always PNG
	parts := []genai.Part{
		genai.ImageData("png", imageData),
		genai.Text(prompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Text{}, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Text{}, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	content := strings.TrimSpace(responseText.String())
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	return Text{
		Content:    content,
		Confidence: heuristicConfidence(content),
	}, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
