package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/companion/internal/model/speech"
)

// blockingOutput starts immediately and plays until released or cancelled.
type blockingOutput struct {
	mu       sync.Mutex
	started  []string
	finished []string
	release  chan struct{}
	startCh  chan string
}

func newBlockingOutput() *blockingOutput {
	return &blockingOutput{release: make(chan struct{}), startCh: make(chan string, 8)}
}

func (o *blockingOutput) Speak(ctx context.Context, u speech.Utterance, started func()) error {
	o.mu.Lock()
	o.started = append(o.started, u.Text)
	o.mu.Unlock()

	started()
	o.startCh <- u.Text

	select {
	case <-o.release:
	case <-ctx.Done():
		// simulate a device that takes a moment to release
		time.Sleep(20 * time.Millisecond)
		o.mu.Lock()
		o.finished = append(o.finished, u.Text)
		o.mu.Unlock()
		return ctx.Err()
	}
	o.mu.Lock()
	o.finished = append(o.finished, u.Text)
	o.mu.Unlock()
	return nil
}

type flagRecorder struct {
	mu    sync.Mutex
	flags []bool
}

func (r *flagRecorder) record(v bool) {
	r.mu.Lock()
	r.flags = append(r.flags, v)
	r.mu.Unlock()
}

func (r *flagRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.flags...)
}

func TestSpeakSetsFlagUntilDone(t *testing.T) {
	output := newBlockingOutput()
	flags := &flagRecorder{}
	controller := NewController(output, flags.record)

	require.NoError(t, controller.Speak(context.Background(), speech.Utterance{Text: "hello"}))
	assert.Equal(t, "hello", <-output.startCh)
	assert.True(t, controller.Speaking())

	close(output.release)
	require.NoError(t, controller.Wait(context.Background()))
	assert.False(t, controller.Speaking())
	assert.Equal(t, []bool{true, false}, flags.snapshot())
}

func TestSpeakCancelsPreviousUtterance(t *testing.T) {
	output := newBlockingOutput()
	flags := &flagRecorder{}
	controller := NewController(output, flags.record)

	require.NoError(t, controller.Speak(context.Background(), speech.Utterance{Text: "first"}))
	<-output.startCh

	require.NoError(t, controller.Speak(context.Background(), speech.Utterance{Text: "second"}))
	<-output.startCh

	output.mu.Lock()
	assert.Equal(t, []string{"first"}, output.finished, "first utterance released before second started")
	output.mu.Unlock()
	assert.True(t, controller.Speaking(), "stale completion must not clear the newer flag")

	controller.Stop()
	assert.False(t, controller.Speaking())
}

func TestStopWhenIdle(t *testing.T) {
	controller := NewController(newBlockingOutput(), nil)
	controller.Stop()
	assert.False(t, controller.Speaking())
	assert.NoError(t, controller.Wait(context.Background()))
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	controller := NewController(newBlockingOutput(), nil)
	assert.ErrorIs(t, controller.Speak(context.Background(), speech.Utterance{Text: " "}), ErrEmptyText)
}

type failingOutput struct{}

func (failingOutput) Speak(context.Context, speech.Utterance, func()) error {
	return errors.New("synthesis unavailable")
}

func TestFailureBeforeStartNeverSetsFlag(t *testing.T) {
	flags := &flagRecorder{}
	controller := NewController(failingOutput{}, flags.record)

	require.NoError(t, controller.Speak(context.Background(), speech.Utterance{Text: "hello"}))
	require.NoError(t, controller.Wait(context.Background()))
	assert.False(t, controller.Speaking())
	assert.Empty(t, flags.snapshot())
}

func TestPlaybackOutlivesCallerContext(t *testing.T) {
	output := newBlockingOutput()
	controller := NewController(output, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, controller.Speak(ctx, speech.Utterance{Text: "hello"}))
	<-output.startCh
	cancel()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, controller.Speaking())
	controller.Stop()
}
