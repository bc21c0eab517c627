package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/havenchat/companion/internal/model/speech"
)

type fakeTTSServer struct {
	t         *testing.T
	upgrader  websocket.Upgrader
	mu        sync.Mutex
	requests  []ttsRequestBody
	resources []string
	reject    map[string]bool
	hang      bool
}

func (s *fakeTTSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resource := r.Header.Get("X-Api-Resource-Id")
	if r.Header.Get("X-Api-App-Key") != "app" || r.Header.Get("X-Api-Access-Key") != "token" {
		http.Error(w, "unauthorised", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	frame, err := DecodeFrame(bytes.NewReader(data))
	if err != nil {
		s.t.Errorf("decode request: %v", err)
		return
	}
	var body ttsRequestBody
	if err := json.Unmarshal(frame.Payload, &body); err != nil {
		s.t.Errorf("unmarshal request: %v", err)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, body)
	s.resources = append(s.resources, resource)
	reject := s.reject[resource]
	hang := s.hang
	s.mu.Unlock()

	if reject {
		errFrame := &Frame{
			Header:    NewHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
			ErrorCode: 45000000,
			Payload:   []byte(`{"error":"` + resourceMismatch + `"}`),
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, errFrame.Encode())
		return
	}
	if hang {
		_, _, _ = conn.ReadMessage()
		return
	}

	audio := &Frame{
		Header:   NewHeader(AudioOnlyServerResponse, PositiveSequenceNumber, NoSerialization, NoCompression),
		Sequence: 1,
		Payload:  []byte("ID3-part1-"),
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, audio.Encode())

	jsonChunk, _ := json.Marshal(map[string]any{
		"reqid":    "req-42",
		"code":     0,
		"data":     base64.StdEncoding.EncodeToString([]byte("part2")),
		"addition": map[string]string{"duration": "1200"},
	})
	final := &Frame{
		Header:    NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType: EventTypeSessionFinished,
		SessionID: body.User.UID,
		Payload:   jsonChunk,
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, final.Encode())
}

func newFakeTTS(t *testing.T) (*fakeTTSServer, string) {
	t.Helper()
	fake := &fakeTTSServer{t: t, reject: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig() *speech.SpeechConfig {
	return &speech.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		TTSVoice:    "en_female_candice_emo_v2_mars_bigtts",
		TTSLanguage: "en-US",
	}
}

func TestSynthesizeCollectsAudio(t *testing.T) {
	fake, endpoint := newFakeTTS(t)
	synth := NewVolcengineSynthesizer(testConfig(), endpoint)

	resp, err := synth.Synthesize(context.Background(), &speech.TTSRequest{
		Text:         "Tell me more",
		Emotion:      "tender",
		EmotionScale: 3,
	})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(resp.AudioData) != "ID3-part1-part2" {
		t.Fatalf("unexpected audio: %q", resp.AudioData)
	}
	if resp.RequestID != "req-42" || resp.Duration != 1200 || resp.Format != "mp3" {
		t.Fatalf("unexpected response metadata: %+v", resp)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(fake.requests))
	}
	params := fake.requests[0].ReqParams
	if params.Speaker != "en_female_candice_emo_v2_mars_bigtts" || params.Language != "en-US" {
		t.Fatalf("unexpected request params: %+v", params)
	}
	if params.AudioParams.Emotion != "tender" || params.AudioParams.EmotionScale != 3 {
		t.Fatalf("emotion not forwarded: %+v", params.AudioParams)
	}
	if fake.resources[0] != "seed-tts-2.0" {
		t.Fatalf("expected seed resource first, got %s", fake.resources[0])
	}
}

func TestSynthesizeFallsBackOnResourceMismatch(t *testing.T) {
	fake, endpoint := newFakeTTS(t)
	fake.reject["seed-tts-2.0"] = true
	synth := NewVolcengineSynthesizer(testConfig(), endpoint)

	resp, err := synth.Synthesize(context.Background(), &speech.TTSRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if len(resp.AudioData) == 0 {
		t.Fatalf("expected audio")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{"seed-tts-2.0", "volc.service_type.10029"}
	if !reflect.DeepEqual(fake.resources, want) {
		t.Fatalf("resources tried = %v, want %v", fake.resources, want)
	}
}

func TestSynthesizeRejectsEmptyTextAndMissingCredentials(t *testing.T) {
	synth := NewVolcengineSynthesizer(testConfig(), "ws://127.0.0.1:1")
	if _, err := synth.Synthesize(context.Background(), &speech.TTSRequest{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected empty text error, got %v", err)
	}

	synth = NewVolcengineSynthesizer(&speech.SpeechConfig{AppID: "app"}, "ws://127.0.0.1:1")
	if _, err := synth.Synthesize(context.Background(), &speech.TTSRequest{Text: "hi"}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestSynthesizeHonoursContext(t *testing.T) {
	fake, endpoint := newFakeTTS(t)
	fake.hang = true
	synth := NewVolcengineSynthesizer(testConfig(), endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := synth.Synthesize(ctx, &speech.TTSRequest{Text: "hello"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestResolveResourceCandidates(t *testing.T) {
	tests := []struct {
		voice string
		want  []string
	}{
		{voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{voice: "en_female_candice_emo_v2_mars_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{voice: "en_male_legacy", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		if got := resolveResourceCandidates(tt.voice); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("resolveResourceCandidates(%q) = %v, want %v", tt.voice, got, tt.want)
		}
	}
}

func TestResolveSpeakerCandidates(t *testing.T) {
	tests := []struct {
		request  string
		fallback string
		want     []string
	}{
		{request: "calm-male", fallback: "en_female_candice_emo_v2_mars_bigtts",
			want: []string{"en_male_glen_emo_v2_mars_bigtts", "en_female_candice_emo_v2_mars_bigtts"}},
		{request: "", fallback: "calm-female", want: []string{"en_female_candice_emo_v2_mars_bigtts"}},
		{request: "EN_voice", fallback: "en_voice", want: []string{"EN_voice"}},
	}

	for _, tt := range tests {
		if got := resolveSpeakerCandidates(tt.request, tt.fallback); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("resolveSpeakerCandidates(%q, %q) = %v, want %v", tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	if isResourceMismatchError(nil) {
		t.Fatalf("nil is not a mismatch")
	}
	if isResourceMismatchError(fmt.Errorf("some other error")) {
		t.Fatalf("unrelated error is not a mismatch")
	}
	if !isResourceMismatchError(fmt.Errorf("TTS error: {\"error\":\"%s\"}", resourceMismatch)) {
		t.Fatalf("expected mismatch")
	}
}
