package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultPlayerCommand is the external player used when none is configured.
const DefaultPlayerCommand = "mpg123"

// ExecPlayer plays audio by handing a temporary file to an external command.
// The measured duration is wall-clock time of the command.
type ExecPlayer struct {
	Command string
	Args    []string
	TempDir string
}

func NewExecPlayer(command string, args ...string) *ExecPlayer {
	if command == "" {
		command = DefaultPlayerCommand
		if len(args) == 0 {
			args = []string{"-q"}
		}
	}
	return &ExecPlayer{Command: command, Args: args}
}

// Play blocks until the command exits. Cancelling ctx kills the command.
func (p *ExecPlayer) Play(ctx context.Context, audio []byte) (time.Duration, error) {
	if len(audio) == 0 {
		return 0, errors.New("empty audio")
	}
	f, err := os.CreateTemp(p.TempDir, "langu-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("create temp audio: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close temp audio: %w", err)
	}

	args := append(append([]string(nil), p.Args...), path)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return elapsed, ctxErr
	}
	if err != nil {
		return elapsed, fmt.Errorf("%s: %w", p.Command, err)
	}
	return elapsed, nil
}
