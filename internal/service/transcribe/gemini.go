package transcribe

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/havenchat/companion/internal/model/speech"
)

// contentGenerator is the part of *genai.GenerativeModel we use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiTranscriber sends the clip inline to a Gemini model.
type GeminiTranscriber struct {
	client      *genai.Client
	model       contentGenerator
	instruction string
	timeout     time.Duration
}

func NewGeminiTranscriber(ctx context.Context, apiKey, modelName, instruction string, timeout time.Duration) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	log.Printf("[transcribe] gemini transcriber ready, model=%s", modelName)
	return &GeminiTranscriber{
		client:      client,
		model:       model,
		instruction: instructionOrDefault(instruction),
		timeout:     timeout,
	}, nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, clip speech.AudioClip) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(g.instruction),
		genai.Blob{MIMEType: mimeTypeOf(clip), Data: clip.Data},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := collectText(resp)
	if text == "" {
		log.Printf("[transcribe] gemini returned no text for %d bytes", len(clip.Data))
		return "", nil
	}
	log.Printf("[transcribe] gemini transcribed %d bytes into %d chars", len(clip.Data), len(text))
	return text, nil
}

// Close releases the underlying client.
func (g *GeminiTranscriber) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
