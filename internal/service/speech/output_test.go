package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/companion/internal/analysis/mood"
	"github.com/havenchat/companion/internal/model/speech"
)

type fakeSynth struct {
	req *speech.TTSRequest
	err error
}

func (f *fakeSynth) Synthesize(_ context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &speech.TTSResponse{AudioData: []byte("mp3")}, nil
}

type fakePlayer struct {
	played []byte
}

func (f *fakePlayer) Play(_ context.Context, audio []byte) error {
	f.played = audio
	return nil
}

func TestSynthesizedOutputTintsEmotion(t *testing.T) {
	synth, player := &fakeSynth{}, &fakePlayer{}
	output := NewSynthesizedOutput(synth, player, "calm-female", true)

	started := false
	err := output.Speak(context.Background(), speech.Utterance{Text: "Tell me more", Prompt: "I feel anxious"}, func() { started = true })
	require.NoError(t, err)

	assert.True(t, started)
	assert.Equal(t, []byte("mp3"), player.played)
	assert.Equal(t, "en_female_candice_emo_v2_mars_bigtts", synth.req.Voice)
	assert.Equal(t, string(mood.ToneTender), synth.req.Emotion)
	assert.InDelta(t, 2.75, synth.req.EmotionScale, 0.01)
}

func TestSynthesizedOutputWithoutMoodTone(t *testing.T) {
	synth := &fakeSynth{}
	output := NewSynthesizedOutput(synth, &fakePlayer{}, "calm-female", false)

	require.NoError(t, output.Speak(context.Background(), speech.Utterance{Text: "Tell me more", Prompt: "I feel anxious"}, nil))
	assert.Empty(t, synth.req.Emotion)
}

func TestSynthesizedOutputFailureSkipsPlayback(t *testing.T) {
	synth, player := &fakeSynth{err: errors.New("quota")}, &fakePlayer{}
	output := NewSynthesizedOutput(synth, player, "calm-female", true)

	started := false
	err := output.Speak(context.Background(), speech.Utterance{Text: "hi"}, func() { started = true })
	require.Error(t, err)
	assert.False(t, started)
	assert.Nil(t, player.played)
}

func TestComputeEmotionParameters(t *testing.T) {
	decision := mood.Decision{Mood: mood.Sad, Tone: mood.ToneComfort, Scale: 3.5, Score: 6}

	enable, label, scale := ComputeEmotionParameters("en_female_candice_emo_v2_mars_bigtts", decision)
	assert.True(t, enable)
	assert.Equal(t, "comfort", label)
	assert.InDelta(t, 3.5, scale, 0.001)

	enable, _, _ = ComputeEmotionParameters("en_female_amy_jupiter_bigtts", decision)
	assert.False(t, enable, "voice without emotion support")

	enable, _, _ = ComputeEmotionParameters("en_female_candice_emo_v2_mars_bigtts", mood.Decision{Tone: mood.ToneNeutral})
	assert.False(t, enable)
}
