package environment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// SandboxProvider runs each command in a fresh, uniquely named temporary
// directory. The directory is both the working directory and the allowed
// path root; any explicitly allowed paths are symlinked into it so the
// command can reach them without leaving the sandbox.
type SandboxProvider struct {
	baseDir string
}

// NewSandboxProvider creates the sandbox provider rooted at baseDir.
func NewSandboxProvider(baseDir string) *SandboxProvider {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "cynetics", "sandboxes")
	}
	return &SandboxProvider{baseDir: baseDir}
}

func (p *SandboxProvider) Kind() string {
	return model.EnvSandbox
}

func (p *SandboxProvider) Capabilities() Capabilities {
	return Capabilities{
		Name:        "sandbox",
		Description: "runs in an ephemeral temporary directory, removed after execution",
		Isolated:    true,
	}
}

// Prepare allocates the sandbox directory and links in the task's allowed
// paths by basename, mirroring them at the sandbox root.
func (p *SandboxProvider) Prepare(_ context.Context, task *model.Task) (*Context, error) {
	if err := os.MkdirAll(p.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create sandbox base: %v", ErrUnavailable, err)
	}

	dir, err := os.MkdirTemp(p.baseDir, "task-"+task.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: create sandbox: %v", ErrUnavailable, err)
	}

	for _, allowed := range task.AllowedPaths {
		if _, err := os.Stat(allowed); err != nil {
			continue
		}
		link := filepath.Join(dir, filepath.Base(allowed))
		if err := os.Symlink(allowed, link); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("link allowed path %s: %w", allowed, err)
		}
	}

	return &Context{
		TaskID:  task.ID,
		Kind:    model.EnvSandbox,
		Root:    dir,
		WorkDir: dir,
	}, nil
}

func (p *SandboxProvider) Start(_ context.Context, ec *Context, command string, stdout, stderr io.Writer) (Handle, error) {
	return startProcess(ec.WorkDir, command, stdout, stderr)
}

// Teardown removes the sandbox directory and everything the command left in it.
func (p *SandboxProvider) Teardown(_ context.Context, ec *Context) error {
	if ec.Root == "" {
		return nil
	}
	if err := os.RemoveAll(ec.Root); err != nil {
		return fmt.Errorf("remove sandbox: %w", err)
	}
	return nil
}
