package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestTask() *model.Task {
	return &model.Task{
		ID:          model.NewID(),
		Name:        "echo",
		Description: "prints hello",
		Command:     "echo hello",
		Environment: model.EnvLocal,
		Status:      model.StatusCreated,
		TimeoutS:    30,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := makeTestTask()
	task.AllowedPaths = []string{"/var/data", "/srv/shared"}

	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}

	if got.ID != task.ID {
		t.Errorf("ID = %q, want %q", got.ID, task.ID)
	}
	if got.Name != task.Name {
		t.Errorf("Name = %q, want %q", got.Name, task.Name)
	}
	if got.Command != task.Command {
		t.Errorf("Command = %q, want %q", got.Command, task.Command)
	}
	if got.Environment != task.Environment {
		t.Errorf("Environment = %q, want %q", got.Environment, task.Environment)
	}
	if got.Status != model.StatusCreated {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCreated)
	}
	if got.TimeoutS != task.TimeoutS {
		t.Errorf("TimeoutS = %d, want %d", got.TimeoutS, task.TimeoutS)
	}
	if len(got.AllowedPaths) != 2 || got.AllowedPaths[0] != "/var/data" {
		t.Errorf("AllowedPaths = %v, want %v", got.AllowedPaths, task.AllowedPaths)
	}
	if got.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil", *got.ExitCode)
	}
	if got.StartedAt != nil || got.FinishedAt != nil {
		t.Error("StartedAt/FinishedAt should be unset on a created task")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTask(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask error = %v, want ErrNotFound", err)
	}
}

func TestListTasksInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		task := makeTestTask()
		task.Name = fmt.Sprintf("task-%d", i)
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask[%d]: %v", i, err)
		}
		ids = append(ids, task.ID)
	}

	tasks, total, err := s.ListTasks(ctx, 100, 0)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	for i, task := range tasks {
		if task.ID != ids[i] {
			t.Errorf("tasks[%d].ID = %q, want %q (insertion order)", i, task.ID, ids[i])
		}
	}
}

func TestListTasksPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.CreateTask(ctx, makeTestTask()); err != nil {
			t.Fatalf("CreateTask[%d]: %v", i, err)
		}
	}

	page1, total, err := s.ListTasks(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Errorf("len(page1) = %d, want 2", len(page1))
	}

	page2, _, err := s.ListTasks(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListTasks page 2: %v", err)
	}
	if len(page2) != 2 {
		t.Errorf("len(page2) = %d, want 2", len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Error("pages overlap")
	}
}

func TestListTasksByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	running := makeTestTask()
	if err := s.CreateTask(ctx, running); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, running.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if err := s.CreateTask(ctx, makeTestTask()); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	tasks, err := s.ListTasksByStatus(ctx, model.StatusRunning)
	if err != nil {
		t.Fatalf("ListTasksByStatus: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != running.ID {
		t.Errorf("ListTasksByStatus = %v, want only %s", tasks, running.ID)
	}
}

func TestUpdateTaskStatusSetsStartedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := makeTestTask()
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := s.UpdateTaskStatus(ctx, task.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not set on running transition")
	}
}

func TestUpdateTaskStatusInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := makeTestTask()
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// created -> completed skips running.
	err := s.UpdateTaskResult(ctx, task.ID, model.StatusCompleted, nil, "", "", "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("UpdateTaskResult error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateTaskResultTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := makeTestTask()
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, task.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	exitCode := 0
	if err := s.UpdateTaskResult(ctx, task.ID, model.StatusCompleted, &exitCode, "hello\n", "", ""); err != nil {
		t.Fatalf("UpdateTaskResult: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", got.ExitCode)
	}
	if got.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", got.Stdout, "hello\n")
	}
	if got.FinishedAt == nil {
		t.Fatal("FinishedAt not set on terminal transition")
	}
	if got.StartedAt.After(*got.FinishedAt) {
		t.Errorf("StartedAt %v after FinishedAt %v", got.StartedAt, got.FinishedAt)
	}

	// Terminal states are final.
	err = s.UpdateTaskStatus(ctx, task.ID, model.StatusRunning)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-running a completed task: error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateTaskResultUnknownID(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateTaskResult(context.Background(), "nonexistent", model.StatusFailed, nil, "", "", "boom")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTaskResult error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := makeTestTask()
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask after delete: error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteTask twice: error = %v, want ErrNotFound", err)
	}
}

func TestGetTaskStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	completed := makeTestTask()
	if err := s.CreateTask(ctx, completed); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, completed.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	exitCode := 0
	if err := s.UpdateTaskResult(ctx, completed.ID, model.StatusCompleted, &exitCode, "", "", ""); err != nil {
		t.Fatalf("UpdateTaskResult: %v", err)
	}

	sandbox := makeTestTask()
	sandbox.Environment = model.EnvSandbox
	if err := s.CreateTask(ctx, sandbox); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	stats, err := s.GetTaskStats(ctx)
	if err != nil {
		t.Fatalf("GetTaskStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 1 {
		t.Errorf("CountByStatus[completed] = %d, want 1", stats.CountByStatus[model.StatusCompleted])
	}
	if stats.CountByStatus[model.StatusCreated] != 1 {
		t.Errorf("CountByStatus[created] = %d, want 1", stats.CountByStatus[model.StatusCreated])
	}
	if stats.CountByEnvironment[model.EnvLocal] != 1 || stats.CountByEnvironment[model.EnvSandbox] != 1 {
		t.Errorf("CountByEnvironment = %v", stats.CountByEnvironment)
	}
	if stats.AvgDurationMS < 0 {
		t.Errorf("AvgDurationMS = %f, want >= 0", stats.AvgDurationMS)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	task := makeTestTask()
	if err := s1.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s1.UpdateTaskStatus(ctx, task.ID, model.StatusRunning); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A crash between running and the terminal write leaves the task visibly
	// running after restart; reconciliation handles it from there.
	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s2.Close() })

	got, err := s2.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask after reopen: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Errorf("Status after reopen = %q, want running", got.Status)
	}
}
