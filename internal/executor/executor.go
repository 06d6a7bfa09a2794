// Package executor launches a task's command inside a prepared execution
// context, supervises its deadline, and reports a terminal outcome. The
// executor never touches storage; the engine persists what it reports.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/CynnixSinn/Cynetics-CLI/internal/environment"
	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

const (
	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 64 * 1024

	// DefaultGrace is how long a terminated process gets between SIGTERM
	// and SIGKILL.
	DefaultGrace = 2 * time.Second

	// teardownTimeout bounds context teardown so a wedged backend cannot
	// hold an execution slot forever.
	teardownTimeout = 30 * time.Second
)

// Shell exit statuses the launcher itself produces for an unrunnable command.
const (
	exitNotFound      = 127
	exitNotExecutable = 126
)

// Request describes one execution attempt.
type Request struct {
	Task     *model.Task
	Provider environment.Provider
	Timeout  time.Duration

	// PublishLine, when set, receives each output line as it is produced.
	PublishLine func(line string)
}

// Outcome is the terminal result of one execution attempt. Exactly one of
// ExitCode and Error is set.
type Outcome struct {
	Status   string
	ExitCode *int
	Stdout   string
	Stderr   string
	Error    string
}

// Executor runs commands inside execution contexts with bounded output
// capture and deadline supervision.
type Executor struct {
	logger         *slog.Logger
	maxOutputBytes int
	grace          time.Duration
}

// New creates an executor. Zero values fall back to the package defaults.
func New(logger *slog.Logger, maxOutputBytes int, grace time.Duration) *Executor {
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Executor{
		logger:         logger,
		maxOutputBytes: maxOutputBytes,
		grace:          grace,
	}
}

type waitResult struct {
	status environment.WaitStatus
	err    error
}

// Run executes the task's command to a terminal outcome: prepare the context,
// launch, race the process exit against the deadline and external
// cancellation, then tear the context down. Teardown happens on every exit
// path and its failures are logged, never allowed to mask the outcome.
func (x *Executor) Run(ctx context.Context, req Request) Outcome {
	env := req.Task.Environment
	activeExecutions.Inc()
	defer activeExecutions.Dec()

	start := time.Now()
	outcome := x.run(ctx, req)
	executionDuration.WithLabelValues(env).Observe(time.Since(start).Seconds())
	executionsTotal.WithLabelValues(env, outcome.Status).Inc()

	return outcome
}

func (x *Executor) run(ctx context.Context, req Request) Outcome {
	task := req.Task

	ec, err := req.Provider.Prepare(ctx, task)
	if err != nil {
		return failed(fmt.Sprintf("prepare environment: %v", err))
	}
	defer x.teardown(req.Provider, ec)

	stdout := newBoundedBuffer(x.maxOutputBytes)
	stderr := newBoundedBuffer(x.maxOutputBytes)
	outW, errW := io.Writer(stdout), io.Writer(stderr)

	var lines *lineWriter
	if req.PublishLine != nil {
		lines = newLineWriter(req.PublishLine)
		outW = io.MultiWriter(stdout, lines)
		errW = io.MultiWriter(stderr, lines)
	}

	handle, err := req.Provider.Start(ctx, ec, task.Command, outW, errW)
	if err != nil {
		return failed(fmt.Sprintf("failed to launch: %v", err))
	}

	waitCh := make(chan waitResult, 1)
	go func() {
		st, err := handle.Wait(context.Background())
		waitCh <- waitResult{status: st, err: err}
	}()

	sup := NewSupervisor(req.Timeout, func() {
		handle.Terminate(context.Background(), x.grace)
	})
	defer sup.Cancel()

	var wr waitResult
	cancelled := false
	select {
	case wr = <-waitCh:
	case <-ctx.Done():
		cancelled = true
		handle.Terminate(context.Background(), x.grace)
		wr = <-waitCh
	}
	sup.Cancel()
	if lines != nil {
		lines.Close()
	}

	out := Outcome{Stdout: stdout.String(), Stderr: stderr.String()}
	switch {
	case sup.Fired():
		out.Status = model.StatusTimedOut
		out.Error = fmt.Sprintf("task timed out after %s", req.Timeout)
	case cancelled:
		out.Status = model.StatusFailed
		out.Error = "cancelled"
	case wr.err != nil:
		out.Status = model.StatusFailed
		out.Error = wr.err.Error()
	default:
		x.classifyExit(&out, wr.status.ExitCode, stderr.String())
	}
	return out
}

// classifyExit maps exit statuses onto the terminal invariant: a launch
// failure carries an error message, an executed command carries an exit code.
// The shell reports an unrunnable command as 127 ("not found") or 126
// ("permission denied"); a command that itself exits with those statuses is
// indistinguishable from one.
func (x *Executor) classifyExit(out *Outcome, exitCode int, stderr string) {
	switch exitCode {
	case 0:
		out.Status = model.StatusCompleted
		out.ExitCode = &exitCode
	case exitNotFound:
		out.Status = model.StatusFailed
		out.Error = launchError(stderr, "command not found")
	case exitNotExecutable:
		out.Status = model.StatusFailed
		out.Error = launchError(stderr, "command not executable")
	default:
		out.Status = model.StatusFailed
		out.ExitCode = &exitCode
	}
}

// launchError prefers the shell's own diagnostic (first stderr line) over the
// generic fallback.
func launchError(stderr, fallback string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stderr), "\n")
	if line != "" {
		return line
	}
	return fallback
}

// teardown releases the execution context on the first exit path reached.
func (x *Executor) teardown(p environment.Provider, ec *environment.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Teardown(ctx, ec); err != nil {
		x.logger.Error("teardown execution context",
			"task_id", ec.TaskID,
			"environment", ec.Kind,
			"error", err,
		)
	}
	teardownDuration.WithLabelValues(ec.Kind).Observe(time.Since(start).Seconds())
}

func failed(msg string) Outcome {
	return Outcome{Status: model.StatusFailed, Error: msg}
}
