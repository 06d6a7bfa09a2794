package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// startProcess launches command via the shell in dir, with output streamed to
// the given writers. The process is placed in its own process group so that
// Terminate can reap any children the command spawns.
func startProcess(dir, command string, stdout, stderr io.Writer) (*processHandle, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	return &processHandle{
		cmd:    cmd,
		exited: make(chan struct{}),
	}, nil
}

// processHandle wraps a running OS process. Wait must be called exactly once.
type processHandle struct {
	cmd    *exec.Cmd
	exited chan struct{}
}

// Wait blocks until the process exits. A non-zero exit is a result, not an
// error; an error is returned only when the wait itself fails.
func (h *processHandle) Wait(_ context.Context) (WaitStatus, error) {
	defer close(h.exited)

	err := h.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return WaitStatus{ExitCode: exitErr.ExitCode()}, nil
		}
		return WaitStatus{}, fmt.Errorf("wait: %w", err)
	}
	return WaitStatus{ExitCode: 0}, nil
}

// Terminate signals the process group with SIGTERM, waits up to grace for a
// natural exit, then escalates to SIGKILL.
func (h *processHandle) Terminate(ctx context.Context, grace time.Duration) {
	signalGroupTerm(h.cmd)

	select {
	case <-h.exited:
		return
	case <-ctx.Done():
	case <-time.After(grace):
	}

	signalGroupKill(h.cmd)
}
