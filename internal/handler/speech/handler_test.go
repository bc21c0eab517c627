package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/havenchat/companion/internal/model/speech"
	speechsvc "github.com/havenchat/companion/internal/service/speech"
)

// blockingOutput 开始播放后一直阻塞到被取消
type blockingOutput struct {
	mu     sync.Mutex
	spoken []speechmodel.Utterance
}

func (o *blockingOutput) Speak(ctx context.Context, u speechmodel.Utterance, started func()) error {
	o.mu.Lock()
	o.spoken = append(o.spoken, u)
	o.mu.Unlock()
	started()
	<-ctx.Done()
	return ctx.Err()
}

func (o *blockingOutput) utterances() []speechmodel.Utterance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]speechmodel.Utterance(nil), o.spoken...)
}

type fakeSynth struct {
	req *speechmodel.TTSRequest
	err error
}

func (f *fakeSynth) Synthesize(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{AudioData: []byte("audio"), Format: req.Format}, nil
}

func setupRouter(synth speechsvc.Synthesizer) (*chi.Mux, *speechsvc.Controller, *blockingOutput) {
	output := &blockingOutput{}
	controller := speechsvc.NewController(output, nil)
	r := chi.NewRouter()
	New(controller, synth, "en_female_candice_emo_v2_mars_bigtts").RegisterRoutes(r)
	return r, controller, output
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSpeakThenStop(t *testing.T) {
	r, controller, output := setupRouter(nil)

	resp := post(r, "/speech/speak", map[string]string{"text": "Tell me more", "prompt": "I feel anxious"})
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Eventually(t, controller.Speaking, time.Second, 5*time.Millisecond)

	spoken := output.utterances()
	require.Len(t, spoken, 1)
	assert.Equal(t, "I feel anxious", spoken[0].Prompt)

	resp = post(r, "/speech/stop", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"speaking":false}`, resp.Body.String())
}

func TestSpeakRequiresText(t *testing.T) {
	r, _, output := setupRouter(nil)

	resp := post(r, "/speech/speak", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, output.utterances())
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	synth := &fakeSynth{}
	r, _, _ := setupRouter(synth)

	resp := post(r, "/speech/synthesize", map[string]string{"text": " hello ", "voice": "calm-female"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "audio/mp3", resp.Header().Get("Content-Type"))
	assert.Equal(t, "audio", resp.Body.String())
	assert.Equal(t, "hello", synth.req.Text)
	assert.Equal(t, speechsvc.NormalizeVoiceAlias("calm-female"), synth.req.Voice)
}

func TestSynthesizeDefaultsVoice(t *testing.T) {
	synth := &fakeSynth{}
	r, _, _ := setupRouter(synth)

	resp := post(r, "/speech/synthesize", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "en_female_candice_emo_v2_mars_bigtts", synth.req.Voice)
}

func TestSynthesizeFailureAndUnavailable(t *testing.T) {
	r, _, _ := setupRouter(&fakeSynth{err: errors.New("boom")})
	assert.Equal(t, http.StatusBadGateway, post(r, "/speech/synthesize", map[string]string{"text": "hi"}).Code)

	r, _, _ = setupRouter(nil)
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/speech/synthesize", map[string]string{"text": "hi"}).Code)
}
