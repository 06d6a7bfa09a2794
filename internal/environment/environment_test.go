package environment

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

func makeTask(env string) *model.Task {
	return &model.Task{
		ID:          model.NewID(),
		Name:        "test",
		Command:     "echo hello",
		Environment: env,
		Status:      model.StatusCreated,
		TimeoutS:    30,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestLocalProviderRunsCommand(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()
	task := makeTask(model.EnvLocal)

	ec, err := p.Prepare(ctx, task)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	t.Cleanup(func() { p.Teardown(ctx, ec) })

	var stdout, stderr bytes.Buffer
	h, err := p.Start(ctx, ec, "echo hello", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	st, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if st.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", st.ExitCode)
	}
	if stdout.String() != "hello\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "hello\n")
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestLocalProviderNonZeroExit(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()
	ec, err := p.Prepare(ctx, makeTask(model.EnvLocal))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var stdout, stderr bytes.Buffer
	h, err := p.Start(ctx, ec, "exit 3", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	st, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if st.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", st.ExitCode)
	}
}

func TestLocalProviderWorkingDir(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()
	dir := t.TempDir()
	task := makeTask(model.EnvLocal)
	task.WorkingDir = dir

	ec, err := p.Prepare(ctx, task)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if ec.WorkDir != dir {
		t.Errorf("WorkDir = %q, want %q", ec.WorkDir, dir)
	}

	var stdout, stderr bytes.Buffer
	h, err := p.Start(ctx, ec, "pwd", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	got, err := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestLocalProviderMissingWorkingDir(t *testing.T) {
	p := NewLocalProvider()
	task := makeTask(model.EnvLocal)
	task.WorkingDir = filepath.Join(t.TempDir(), "does-not-exist")

	if _, err := p.Prepare(context.Background(), task); err == nil {
		t.Error("Prepare should fail for a missing working directory")
	}
}

func TestSandboxProviderLifecycle(t *testing.T) {
	base := t.TempDir()
	p := NewSandboxProvider(base)
	ctx := context.Background()
	task := makeTask(model.EnvSandbox)

	ec, err := p.Prepare(ctx, task)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if ec.Root == "" || ec.Root != ec.WorkDir {
		t.Errorf("sandbox context root/workdir mismatch: %+v", ec)
	}
	if !strings.HasPrefix(ec.Root, base) {
		t.Errorf("sandbox %q not under base %q", ec.Root, base)
	}
	if !strings.Contains(filepath.Base(ec.Root), task.ID) {
		t.Errorf("sandbox name %q does not embed task id", filepath.Base(ec.Root))
	}

	// The command runs inside the sandbox and can write freely there.
	var stdout, stderr bytes.Buffer
	h, err := p.Start(ctx, ec, "echo data > out.txt && cat out.txt", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st, err := h.Wait(ctx); err != nil || st.ExitCode != 0 {
		t.Fatalf("Wait: status=%v err=%v", st, err)
	}
	if stdout.String() != "data\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "data\n")
	}

	if err := p.Teardown(ctx, ec); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, err := os.Stat(ec.Root); !os.IsNotExist(err) {
		t.Errorf("sandbox %q still exists after teardown", ec.Root)
	}
}

func TestSandboxProviderUniquePerExecution(t *testing.T) {
	p := NewSandboxProvider(t.TempDir())
	ctx := context.Background()

	ec1, err := p.Prepare(ctx, makeTask(model.EnvSandbox))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	ec2, err := p.Prepare(ctx, makeTask(model.EnvSandbox))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	t.Cleanup(func() {
		p.Teardown(ctx, ec1)
		p.Teardown(ctx, ec2)
	})

	if ec1.Root == ec2.Root {
		t.Errorf("two executions share the sandbox %q", ec1.Root)
	}
}

func TestSandboxProviderLinksAllowedPaths(t *testing.T) {
	shared := t.TempDir()
	if err := os.WriteFile(filepath.Join(shared, "data.txt"), []byte("payload\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := NewSandboxProvider(t.TempDir())
	ctx := context.Background()
	task := makeTask(model.EnvSandbox)
	task.AllowedPaths = []string{shared, filepath.Join(shared, "missing")}

	ec, err := p.Prepare(ctx, task)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	t.Cleanup(func() { p.Teardown(ctx, ec) })

	link := filepath.Join(ec.Root, filepath.Base(shared))
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != shared {
		t.Errorf("link target = %q, want %q", target, shared)
	}

	var stdout, stderr bytes.Buffer
	h, err := p.Start(ctx, ec, "cat "+filepath.Base(shared)+"/data.txt", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st, err := h.Wait(ctx); err != nil || st.ExitCode != 0 {
		t.Fatalf("Wait: status=%v err=%v stderr=%q", st, err, stderr.String())
	}
	if stdout.String() != "payload\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "payload\n")
	}
}

func TestTerminateReapsProcessGroup(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()
	ec, err := p.Prepare(ctx, makeTask(model.EnvLocal))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var stdout, stderr bytes.Buffer
	// The shell spawns a child sleep; both must die with the group.
	h, err := p.Start(ctx, ec, "sleep 30 & sleep 30", &stdout, &stderr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan WaitStatus, 1)
	go func() {
		st, _ := h.Wait(ctx)
		done <- st
	}()

	time.Sleep(100 * time.Millisecond)
	start := time.Now()
	h.Terminate(ctx, time.Second)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("termination took %v, want well under the SIGKILL escalation budget", elapsed)
	}
}
