package environment

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// LocalProvider runs commands directly on the caller's filesystem with the
// inherited environment. It provides no isolation; local execution is
// explicitly trusted.
type LocalProvider struct{}

// NewLocalProvider creates the local execution provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Kind() string {
	return model.EnvLocal
}

func (p *LocalProvider) Capabilities() Capabilities {
	return Capabilities{
		Name:        "local",
		Description: "runs on the host filesystem with no isolation",
		Isolated:    false,
	}
}

// Prepare returns a context pointing at the current working directory, or the
// task's working directory when set.
func (p *LocalProvider) Prepare(_ context.Context, task *model.Task) (*Context, error) {
	dir := task.WorkingDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = cwd
	} else if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: working directory: %v", ErrUnavailable, err)
	}

	return &Context{
		TaskID:  task.ID,
		Kind:    model.EnvLocal,
		WorkDir: dir,
	}, nil
}

func (p *LocalProvider) Start(_ context.Context, ec *Context, command string, stdout, stderr io.Writer) (Handle, error) {
	return startProcess(ec.WorkDir, command, stdout, stderr)
}

// Teardown is a no-op: the local context owns no resources.
func (p *LocalProvider) Teardown(_ context.Context, _ *Context) error {
	return nil
}
