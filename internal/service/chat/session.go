package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/havenchat/companion/internal/model/chat"
	"github.com/havenchat/companion/internal/model/speech"
	"github.com/havenchat/companion/internal/remote"
	"github.com/havenchat/companion/internal/service/voice"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrSendInFlight  = errors.New("a message is already being sent")
	ErrBusy          = errors.New("session is busy")
	ErrEmptyClip     = errors.New("recording captured no audio")
	ErrNoRecorder    = errors.New("voice capture unavailable")
	ErrNoTranscriber = errors.New("transcription unavailable")
	ErrClosed        = errors.New("session closed")
	ErrReset         = errors.New("session reset while request was in flight")
)

// View strings.
const (
	LoginRoute         = "/auth"
	FallbackReply      = "No response received"
	MsgVoiceFailed     = "Failed to process voice input."
	MsgMicrophone      = "Error accessing microphone. Please ensure microphone permissions are granted."
	historyStatusError = "Failed to fetch chat history: %d"
	sendStatusError    = "Failed to send message: %d"
)

// Backend is the remote chat service.
type Backend interface {
	History(ctx context.Context) ([]chat.Exchange, error)
	Send(ctx context.Context, text string) (chat.SendResponse, error)
}

// Transcriber converts a recorded clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip speech.AudioClip) (string, error)
}

// Recorder is the voice capture controller.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (speech.AudioClip, error)
	Recording() bool
}

// Speaker plays assistant replies aloud.
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance) error
}

// StateSink receives a fresh view state after every change.
type StateSink interface {
	Publish(state State)
}

// Options wires the optional collaborators of a Session.
type Options struct {
	Transcriber Transcriber
	Recorder    Recorder
	Speaker     Speaker
	Sink        StateSink
	AutoSpeak   bool
}

// State is what the presentation layer renders.
type State struct {
	Messages     []chat.Message `json:"messages"`
	Loading      bool           `json:"loading"`
	Sending      bool           `json:"sending"`
	Recording    bool           `json:"recording"`
	Transcribing bool           `json:"transcribing"`
	Input        string         `json:"input"`
	Error        string         `json:"error,omitempty"`
	Redirect     string         `json:"redirect,omitempty"`
}

// LoadResult reports how a history load ended.
type LoadResult struct {
	Redirect string
	Count    int
}

// Session orchestrates one conversational view: history, sends, voice input
// and reply playback. Loads and sends exclude each other, and at most one
// send is in flight.
type Session struct {
	backend    Backend
	transcript *Transcript
	opts       Options

	mu           sync.Mutex
	loading      bool
	sending      bool
	transcribing bool
	input        string
	errMsg       string
	redirect     string
	closed       bool
	// gen bumps on Reset; completions from an older gen are dropped.
	gen uint64
}

// NewSession creates a session with an empty transcript.
func NewSession(backend Backend, opts Options) *Session {
	return &Session{
		backend:    backend,
		transcript: NewTranscript(),
		opts:       opts,
	}
}

// Transcript exposes the underlying store.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// State returns the current view state.
func (s *Session) State() State {
	s.mu.Lock()
	state := State{
		Loading:      s.loading,
		Sending:      s.sending,
		Transcribing: s.transcribing,
		Input:        s.input,
		Error:        s.errMsg,
		Redirect:     s.redirect,
	}
	s.mu.Unlock()

	state.Messages = s.transcript.Snapshot()
	if s.opts.Recorder != nil {
		state.Recording = s.opts.Recorder.Recording()
	}
	return state
}

// SetInput replaces the input buffer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.publish()
}

// ClearError dismisses the current error message.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()
}

// Close tears the view down. Completions arriving afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Reset empties the transcript and clears the input buffer and any error,
// e.g. after sign-out. Loads and sends still in flight keep their busy flag
// until they return, but their results are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.transcript.Replace(nil)
	s.input = ""
	s.errMsg = ""
	s.redirect = ""
	s.mu.Unlock()
	s.publish()
}

// Load fetches persisted history and replaces the transcript with it.
func (s *Session) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LoadResult{}, ErrClosed
	}
	if s.loading || s.sending {
		s.mu.Unlock()
		return LoadResult{}, ErrBusy
	}
	s.loading = true
	s.errMsg = ""
	s.redirect = ""
	gen := s.gen
	s.mu.Unlock()
	s.publish()

	exchanges, err := s.backend.History(ctx)

	s.mu.Lock()
	s.loading = false
	if s.closed {
		s.mu.Unlock()
		return LoadResult{}, ErrClosed
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.publish()
		log.Printf("[chat] dropping history load started before reset")
		return LoadResult{}, ErrReset
	}

	var result LoadResult
	switch {
	case err == nil:
		messages := ExpandHistory(exchanges)
		s.transcript.Replace(messages)
		result.Count = len(messages)
	case remote.IsUnauthorized(err):
		s.redirect = LoginRoute
		result.Redirect = LoginRoute
		err = nil
	case remote.IsNotFound(err):
		s.transcript.Replace(nil)
		err = nil
	default:
		s.transcript.Replace(nil)
		s.errMsg = remote.Describe(err, historyStatusError)
		err = fmt.Errorf("load history: %w", err)
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		log.Printf("[chat] history load failed: %v", err)
	}
	return result, err
}

// SendInput sends whatever is in the input buffer.
func (s *Session) SendInput(ctx context.Context) error {
	s.mu.Lock()
	text := s.input
	s.mu.Unlock()
	return s.Send(ctx, text)
}

// Send posts a user utterance. The user record is appended optimistically and
// removed again by its token if the remote call fails.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.sending = true
	s.errMsg = ""
	gen := s.gen
	token := newToken()
	s.transcript.Append(chat.NewMessage(token, chat.RoleUser, text))
	s.mu.Unlock()
	s.publish()

	resp, err := s.backend.Send(ctx, text)

	s.mu.Lock()
	s.sending = false
	if gen != s.gen {
		// Reset already emptied the transcript unless something was appended since.
		s.transcript.RemoveByToken(token, chat.RoleUser)
		s.mu.Unlock()
		s.publish()
		log.Printf("[chat] dropping reply for token=%s started before reset", token)
		return ErrReset
	}
	if err != nil {
		s.transcript.RemoveByToken(token, chat.RoleUser)
		if !s.closed {
			s.errMsg = remote.Describe(err, sendStatusError)
		}
		s.mu.Unlock()
		s.publish()
		log.Printf("[chat] send failed, rolled back token=%s: %v", token, err)
		return fmt.Errorf("send message: %w", err)
	}
	if s.closed {
		s.transcript.RemoveByToken(token, chat.RoleUser)
		s.mu.Unlock()
		return ErrClosed
	}

	content := resp.Response
	if strings.TrimSpace(content) == "" {
		content = FallbackReply
	}
	s.transcript.Append(chat.NewMessage(token, chat.RoleAssistant, content))
	s.input = ""
	s.mu.Unlock()
	s.publish()

	if resp.Response != "" && s.opts.AutoSpeak && s.opts.Speaker != nil {
		if err := s.opts.Speaker.Speak(ctx, speech.Utterance{Text: resp.Response, Prompt: text}); err != nil {
			log.Printf("[chat] reply playback failed: %v", err)
		}
	}
	return nil
}

// StartRecording begins voice capture.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.opts.Recorder == nil {
		return ErrNoRecorder
	}

	if err := s.opts.Recorder.Start(ctx); err != nil {
		// State errors such as a second start are left to the caller.
		if errors.Is(err, voice.ErrMicrophoneUnavailable) {
			s.setError(MsgMicrophone)
		}
		return fmt.Errorf("start recording: %w", err)
	}

	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()
	return nil
}

// StopRecording ends voice capture and submits the clip for transcription.
func (s *Session) StopRecording(ctx context.Context) error {
	if s.opts.Recorder == nil {
		return ErrNoRecorder
	}

	clip, err := s.opts.Recorder.Stop(ctx)
	s.publish()
	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return s.SubmitVoice(ctx, clip)
}

// SubmitVoice transcribes clip and sends the text as if typed. Empty clips
// are skipped without calling the transcription API.
func (s *Session) SubmitVoice(ctx context.Context, clip speech.AudioClip) error {
	if clip.Empty() {
		log.Printf("[chat] skipping transcription of empty recording")
		return ErrEmptyClip
	}
	if s.opts.Transcriber == nil {
		s.setError(MsgVoiceFailed)
		return fmt.Errorf("transcribe: %w", ErrNoTranscriber)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.transcribing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.transcribing = true
	s.errMsg = ""
	gen := s.gen
	s.mu.Unlock()
	s.publish()

	text, err := s.opts.Transcriber.Transcribe(ctx, clip)

	s.mu.Lock()
	s.transcribing = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.publish()
		return ErrReset
	}
	if err != nil {
		s.errMsg = MsgVoiceFailed
		s.mu.Unlock()
		s.publish()
		log.Printf("[chat] transcription failed: %v", err)
		return fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.mu.Unlock()
		s.publish()
		return nil
	}
	s.input = text
	s.mu.Unlock()
	s.publish()

	return s.Send(ctx, text)
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.publish()
}

func (s *Session) publish() {
	if s.opts.Sink == nil {
		return
	}
	s.opts.Sink.Publish(s.State())
}
