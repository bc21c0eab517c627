package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/havenchat/companion/internal/config"
	"github.com/havenchat/companion/internal/model/speech"
)

var ErrDisabled = errors.New("transcription provider not configured")

// DefaultInstruction is sent alongside the clip.
const DefaultInstruction = "Transcribe this WebM audio file:"

// Transcriber converts a recorded clip into text. Silence or unintelligible
// audio yields an empty string and no error.
type Transcriber interface {
	Transcribe(ctx context.Context, clip speech.AudioClip) (string, error)
}

// New builds the transcriber selected by cfg.Provider.
func New(ctx context.Context, cfg config.TranscriptionConfig) (Transcriber, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		return NewArkTranscriber(ctx, chatModel, cfg.Instruction, cfg.Timeout)
	default:
		return NewGeminiTranscriber(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.Instruction, cfg.Timeout)
	}
}

func instructionOrDefault(instruction string) string {
	if strings.TrimSpace(instruction) == "" {
		return DefaultInstruction
	}
	return instruction
}

func mimeTypeOf(clip speech.AudioClip) string {
	if clip.MIMEType == "" {
		return speech.MIMETypeWebM
	}
	return clip.MIMEType
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
