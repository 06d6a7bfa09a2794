package environment

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// ErrUnavailable is returned when an isolation backend cannot be used,
// e.g. the container runtime is not reachable.
var ErrUnavailable = errors.New("environment unavailable")

// Context is the transient isolation boundary backing one execution attempt.
// It is created immediately before launch and torn down on the first exit
// path reached; it is never persisted and never shared across tasks.
type Context struct {
	TaskID string

	// Kind is the environment kind that produced this context.
	Kind string

	// Root is the allowed filesystem root for the execution. Empty for
	// local execution, which has no restriction.
	Root string

	// WorkDir is the working directory the command runs in.
	WorkDir string

	// ContainerID is set only for container contexts.
	ContainerID string
}

// Handle represents a launched command. Wait blocks until the command exits;
// Terminate signals the whole process group (or container) and escalates to a
// forceful kill after the grace period.
type Handle interface {
	Wait(ctx context.Context) (WaitStatus, error)
	Terminate(ctx context.Context, grace time.Duration)
}

// WaitStatus is the exit status of a finished command.
type WaitStatus struct {
	ExitCode int
}

// Capabilities describes an execution environment for discovery endpoints.
type Capabilities struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Isolated    bool   `json:"isolated"`
}

// Provider produces isolated execution contexts for one environment kind and
// launches commands inside them.
type Provider interface {
	// Kind returns the environment kind this provider serves.
	Kind() string

	// Capabilities reports what this provider offers.
	Capabilities() Capabilities

	// Prepare materializes a fresh execution context for the task.
	Prepare(ctx context.Context, task *model.Task) (*Context, error)

	// Start launches the command inside the execution context. Captured
	// output is written to stdout and stderr as it is produced.
	Start(ctx context.Context, ec *Context, command string, stdout, stderr io.Writer) (Handle, error)

	// Teardown releases the execution context's resources. It is invoked
	// exactly once, on the first exit path reached.
	Teardown(ctx context.Context, ec *Context) error
}
