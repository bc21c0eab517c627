package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/havenchat/companion/internal/model/speech"
)

// ArkTranscriber runs the clip through an eino chain ending in a multimodal
// chat model.
type ArkTranscriber struct {
	chain   compose.Runnable[speech.AudioClip, *schema.Message]
	timeout time.Duration
}

func NewArkTranscriber(ctx context.Context, chatModel model.BaseChatModel, instruction string, timeout time.Duration) (*ArkTranscriber, error) {
	instruction = instructionOrDefault(instruction)

	build := compose.InvokableLambda(func(_ context.Context, clip speech.AudioClip) ([]*schema.Message, error) {
		return []*schema.Message{audioMessage(instruction, clip)}, nil
	})

	chain := compose.NewChain[speech.AudioClip, *schema.Message]()
	chain.AppendLambda(build)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile transcription chain: %w", err)
	}

	return &ArkTranscriber{chain: runnable, timeout: timeout}, nil
}

func (a *ArkTranscriber) Transcribe(ctx context.Context, clip speech.AudioClip) (string, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.chain.Invoke(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("ark generate: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		log.Printf("[transcribe] ark returned no text for %d bytes", len(clip.Data))
		return "", nil
	}
	log.Printf("[transcribe] ark transcribed %d bytes into %d chars", len(clip.Data), len(text))
	return text, nil
}

func audioMessage(instruction string, clip speech.AudioClip) *schema.Message {
	mimeType := mimeTypeOf(clip)
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(clip.Data)

	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: instruction},
			{
				Type:     schema.ChatMessagePartTypeAudioURL,
				AudioURL: &schema.ChatMessageAudioURL{URL: dataURL, MIMEType: mimeType},
			},
		},
	}
}
