package speech

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/havenchat/companion/internal/analysis/mood"
	"github.com/havenchat/companion/internal/model/speech"
)

// Synthesizer renders text to encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Player plays encoded audio until done or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// SynthesizedOutput speaks by synthesizing the whole utterance and then
// handing the audio to a player.
type SynthesizedOutput struct {
	synth    Synthesizer
	player   Player
	voice    string
	moodTone bool
}

func NewSynthesizedOutput(synth Synthesizer, player Player, voice string, moodTone bool) *SynthesizedOutput {
	return &SynthesizedOutput{
		synth:    synth,
		player:   player,
		voice:    NormalizeVoiceAlias(voice),
		moodTone: moodTone,
	}
}

func (o *SynthesizedOutput) Speak(ctx context.Context, u speech.Utterance, started func()) error {
	req := o.request(u)

	resp, err := o.synth.Synthesize(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if started != nil {
		started()
	}
	if err := o.player.Play(ctx, resp.AudioData); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

func (o *SynthesizedOutput) request(u speech.Utterance) *speech.TTSRequest {
	req := &speech.TTSRequest{
		Text:   strings.TrimSpace(u.Text),
		Voice:  o.voice,
		Format: "mp3",
	}
	if !o.moodTone {
		return req
	}

	decision := mood.Analyze(u.Prompt, u.Text)
	if enable, label, scale := ComputeEmotionParameters(o.voice, decision); enable {
		req.Emotion = label
		req.EmotionScale = scale
		log.Printf("[speech] mood=%s tone=%s scale=%.1f", decision.Mood, label, scale)
	}
	return req
}
