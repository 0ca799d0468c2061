package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/specialistvlad/facerig/internal/ctxlog"
)

// OfflineEnv keeps the engine's model hub clients from reaching the network.
var OfflineEnv = []string{
	"HF_DATASETS_OFFLINE=1",
	"TRANSFORMERS_OFFLINE=1",
	"HF_HUB_DISABLE_TELEMETRY=1",
}

// Launcher runs the engine as a child process for the lifetime of the app.
type Launcher struct {
	Command []string
	Dir     string
	Env     []string
	Output  io.Writer

	cmd  *exec.Cmd
	done chan error
}

// Start launches the command. It does not wait for the engine to become
// reachable; Session.Connect does that.
func (l *Launcher) Start(ctx context.Context) error {
	if len(l.Command) == 0 {
		return errors.New("engine command is empty")
	}
	if l.cmd != nil {
		return nil
	}

	cmd := exec.Command(l.Command[0], l.Command[1:]...)
	cmd.Dir = l.Dir
	cmd.Env = append(append(os.Environ(), OfflineEnv...), l.Env...)
	out := l.Output
	if out == nil {
		out = os.Stderr
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	l.cmd = cmd
	l.done = make(chan error, 1)
	go func() { l.done <- cmd.Wait() }()

	ctxlog.FromContext(ctx).Info("Engine process started.", "pid", cmd.Process.Pid, "command", l.Command)
	return nil
}

// Stop interrupts the engine and kills it if it has not exited within grace.
func (l *Launcher) Stop(ctx context.Context, grace time.Duration) error {
	if l.cmd == nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	defer func() { l.cmd = nil }()

	if err := l.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn("Failed to interrupt engine, killing it.", "error", err)
		l.cmd.Process.Kill()
	}

	select {
	case <-l.done:
		logger.Info("Engine process stopped.")
		return nil
	case <-time.After(grace):
		logger.Warn("Engine did not stop in time, killing it.", "grace", grace)
		if err := l.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill engine: %w", err)
		}
		<-l.done
		return nil
	}
}
