package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/havenchat/companion/internal/model/speech"
)

var (
	ErrAlreadyRecording      = errors.New("already recording")
	ErrNotRecording          = errors.New("not recording")
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
)

// State of the capture controller.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// CaptureConfig describes how the microphone should be opened.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture. Stop finalises the stream so that reads end
// with io.EOF; Close abandons it.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens microphone sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg CaptureConfig) (AudioSession, error)
	MIMEType() string
}

// Controller records one clip at a time. Chunks are accumulated by a pump
// goroutine and assembled into a single clip on Stop.
type Controller struct {
	capture   AudioCapture
	cfg       CaptureConfig
	chunkSize int
	notify    func(State)

	mu      sync.Mutex
	current *recording
}

type recording struct {
	cancel  context.CancelFunc
	session AudioSession
	buf     bytes.Buffer
	readErr error
	done    chan struct{}
}

// NewController creates an idle controller. notify may be nil.
func NewController(capture AudioCapture, cfg CaptureConfig, notify func(State)) *Controller {
	return &Controller{
		capture:   capture,
		cfg:       cfg,
		chunkSize: 4096,
		notify:    notify,
	}
}

// Start opens the microphone. The capture outlives ctx and ends only on Stop
// or Cancel.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return ErrAlreadyRecording
	}

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := c.capture.Start(captureCtx, c.cfg)
	if err != nil {
		cancel()
		if !errors.Is(err, ErrMicrophoneUnavailable) {
			err = fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
		}
		log.Printf("[voice] capture start failed: %v", err)
		return err
	}

	rec := &recording{
		cancel:  cancel,
		session: session,
		done:    make(chan struct{}),
	}
	c.current = rec
	go c.pump(rec)

	log.Printf("[voice] recording started")
	c.emit(StateRecording)
	return nil
}

func (c *Controller) pump(rec *recording) {
	defer close(rec.done)

	chunk := make([]byte, c.chunkSize)
	for {
		n, err := rec.session.Read(chunk)
		if n > 0 {
			rec.buf.Write(chunk[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				rec.readErr = err
			}
			return
		}
	}
}

// Stop ends the capture and returns everything recorded so far.
func (c *Controller) Stop(ctx context.Context) (speech.AudioClip, error) {
	c.mu.Lock()
	rec := c.current
	c.current = nil
	c.mu.Unlock()

	if rec == nil {
		return speech.AudioClip{}, ErrNotRecording
	}
	defer c.emit(StateIdle)
	defer rec.cancel()

	stopErr := rec.session.Stop()

	select {
	case <-rec.done:
	case <-ctx.Done():
		_ = rec.session.Close()
		<-rec.done
		return speech.AudioClip{}, ctx.Err()
	}

	if stopErr != nil {
		log.Printf("[voice] capture did not stop cleanly: %v", stopErr)
	}
	if rec.readErr != nil {
		log.Printf("[voice] capture read failed after %d bytes: %v", rec.buf.Len(), rec.readErr)
		if rec.buf.Len() == 0 {
			return speech.AudioClip{}, fmt.Errorf("read audio: %w", rec.readErr)
		}
	}

	clip := speech.AudioClip{
		Data:     rec.buf.Bytes(),
		MIMEType: c.capture.MIMEType(),
	}
	log.Printf("[voice] recording stopped, %d bytes captured", len(clip.Data))
	return clip, nil
}

// Cancel discards the active capture, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	rec := c.current
	c.current = nil
	c.mu.Unlock()

	if rec == nil {
		return
	}
	_ = rec.session.Close()
	rec.cancel()
	<-rec.done
	log.Printf("[voice] recording discarded")
	c.emit(StateIdle)
}

// State reports whether a capture is active.
func (c *Controller) State() State {
	if c.Recording() {
		return StateRecording
	}
	return StateIdle
}

// Recording reports whether a capture is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Controller) emit(state State) {
	if c.notify != nil {
		c.notify(state)
	}
}
