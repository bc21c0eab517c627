package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ProcessPlayer plays encoded audio by piping it into an external player
// such as ffplay. Cancelling ctx kills the process.
type ProcessPlayer struct {
	command string
	args    []string
}

func NewProcessPlayer(command string) *ProcessPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &ProcessPlayer{
		command: command,
		args:    []string{"-nodisp", "-autoexit", "-hide_banner", "-loglevel", "error", "-i", "-"},
	}
}

// Play blocks until playback finishes or ctx is done.
func (p *ProcessPlayer) Play(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return fmt.Errorf("player exited: %w: %s", err, trimOutput(stderr.String()))
		}
		return fmt.Errorf("player failed: %w", err)
	}
	return nil
}
