package speech

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/havenchat/companion/internal/model/speech"
)

// SpeechOutput renders one utterance audibly. started is called once audio
// actually begins.
type SpeechOutput interface {
	Speak(ctx context.Context, u speech.Utterance, started func()) error
}

// Controller plays at most one utterance at a time. A new Speak cancels the
// current one and waits for it to release the output before starting.
type Controller struct {
	output SpeechOutput
	notify func(speaking bool)

	// serialises Speak and Stop so a cancelled utterance is fully released
	// before its successor starts
	turn sync.Mutex

	mu       sync.Mutex
	gen      uint64
	speaking bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController creates an idle controller. notify may be nil.
func NewController(output SpeechOutput, notify func(speaking bool)) *Controller {
	return &Controller{output: output, notify: notify}
}

// Speak starts playing u in the background. Playback is not bound to ctx
// cancellation, only to Stop and later Speak calls.
func (c *Controller) Speak(ctx context.Context, u speech.Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return ErrEmptyText
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	c.stopLocked()

	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(playCtx, gen, u, done)
	return nil
}

func (c *Controller) run(ctx context.Context, gen uint64, u speech.Utterance, done chan struct{}) {
	defer close(done)

	err := c.output.Speak(ctx, u, func() { c.setSpeaking(gen, true) })
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[speech] playback failed: %v", err)
	}
	c.setSpeaking(gen, false)
}

// Stop cancels the current utterance and waits until it has released the
// output.
func (c *Controller) Stop() {
	c.turn.Lock()
	defer c.turn.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.gen++
	wasSpeaking := c.speaking
	c.speaking = false
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if wasSpeaking {
		c.emit(false)
	}
}

// Wait blocks until the current utterance ends or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Speaking reports whether audio is currently playing.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// setSpeaking ignores updates from utterances that have been superseded.
func (c *Controller) setSpeaking(gen uint64, speaking bool) {
	c.mu.Lock()
	if gen != c.gen || c.speaking == speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = speaking
	c.mu.Unlock()
	c.emit(speaking)
}

func (c *Controller) emit(speaking bool) {
	if c.notify != nil {
		c.notify(speaking)
	}
}
