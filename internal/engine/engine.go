package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CynnixSinn/Cynetics-CLI/internal/environment"
	"github.com/CynnixSinn/Cynetics-CLI/internal/executor"
	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
	"github.com/CynnixSinn/Cynetics-CLI/internal/policy"
	"github.com/CynnixSinn/Cynetics-CLI/internal/store"
)

// ErrConflict is returned for an invalid state transition request, such as
// executing a task that is already running.
var ErrConflict = errors.New("conflict")

// orphanedError marks tasks found running on startup with no live process.
const orphanedError = "orphaned: process not found on restart"

// Definition is a caller-supplied task definition.
type Definition struct {
	Name         string
	Description  string
	Command      string
	Environment  string
	TimeoutS     int
	WorkingDir   string
	AllowedPaths []string
}

// Engine sequences task execution: it validates definitions, guards commands
// against the path policy, drives the executor, and is the only component
// that writes task records to the store.
type Engine struct {
	store        store.Store
	registry     *environment.Registry
	executor     *executor.Executor
	logger       *slog.Logger
	broker       *OutputBroker
	allowedRoots []string
	defaultTO    int

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an execution engine. allowedRoots are the globally allowed path
// roots for sandboxed and containerized commands; per-task allowed paths
// extend them.
func New(s store.Store, reg *environment.Registry, x *executor.Executor, logger *slog.Logger, allowedRoots []string, defaultTimeoutS int) *Engine {
	if defaultTimeoutS <= 0 {
		defaultTimeoutS = model.DefaultTimeoutS
	}
	return &Engine{
		store:        s,
		registry:     reg,
		executor:     x,
		logger:       logger,
		broker:       NewOutputBroker(),
		allowedRoots: allowedRoots,
		defaultTO:    defaultTimeoutS,
		active:       make(map[string]context.CancelFunc),
	}
}

// Broker returns the engine's output broker for live streaming subscription.
func (e *Engine) Broker() *OutputBroker {
	return e.broker
}

// CreateTask validates the definition, assigns an id, and persists the task
// in the created state.
func (e *Engine) CreateTask(ctx context.Context, def Definition) (*model.Task, error) {
	if def.Command == "" {
		return nil, fmt.Errorf("%w: command is required", model.ErrValidation)
	}
	if !model.ValidEnvironment(def.Environment) {
		return nil, fmt.Errorf("%w: unknown environment %q", model.ErrValidation, def.Environment)
	}
	if def.TimeoutS < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative", model.ErrValidation)
	}

	timeout := def.TimeoutS
	if timeout == 0 {
		timeout = e.defaultTO
	}

	task := &model.Task{
		ID:           model.NewID(),
		Name:         def.Name,
		Description:  def.Description,
		Command:      def.Command,
		Environment:  def.Environment,
		Status:       model.StatusCreated,
		TimeoutS:     timeout,
		WorkingDir:   def.WorkingDir,
		AllowedPaths: def.AllowedPaths,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// ExecuteTask runs a created task to a terminal state and returns the terminal
// record. The call blocks until the command exits, times out, or is
// cancelled. Policy violations surface synchronously and leave the task in
// the created state; environment and execution failures are captured into the
// task's terminal state instead.
func (e *Engine) ExecuteTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	// Claim the id before anything else so a concurrent second request is
	// rejected rather than racing this one.
	runCtx, cancel, err := e.claim(task)
	if err != nil {
		return nil, err
	}
	defer e.release(id, cancel)

	// Pre-launch path policy check. A violation has no side effect.
	roots := append(append([]string{}, e.allowedRoots...), task.AllowedPaths...)
	if err := policy.Validate(task.Command, task.Environment, roots); err != nil {
		return nil, err
	}

	if err := e.store.UpdateTaskStatus(context.Background(), id, model.StatusRunning); err != nil {
		return nil, fmt.Errorf("transition to running: %w", err)
	}
	defer e.broker.Close(id)

	provider, err := e.registry.Resolve(task.Environment)
	if err != nil {
		e.finish(id, executor.Outcome{
			Status: model.StatusFailed,
			Error:  fmt.Sprintf("resolve environment: %v", err),
		})
		return e.store.GetTask(ctx, id)
	}

	outcome := e.executor.Run(runCtx, executor.Request{
		Task:        task,
		Provider:    provider,
		Timeout:     time.Duration(task.TimeoutS) * time.Second,
		PublishLine: func(line string) { e.broker.Publish(id, line) },
	})
	e.finish(id, outcome)

	return e.store.GetTask(ctx, id)
}

// Cancel aborts a running execution. The task lands in the failed state with
// error "cancelled". Cancelling a task that is not executing in this process
// is a conflict.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	if _, err := e.store.GetTask(ctx, id); err != nil {
		return err
	}

	e.mu.Lock()
	cancel, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: task is not running", ErrConflict)
	}
	cancel()
	return nil
}

// GetTask returns the task record.
func (e *Engine) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return e.store.GetTask(ctx, id)
}

// ListTasks returns tasks in insertion order with the total count.
func (e *Engine) ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error) {
	return e.store.ListTasks(ctx, limit, offset)
}

// Stats returns aggregate task statistics.
func (e *Engine) Stats(ctx context.Context) (*store.TaskStats, error) {
	return e.store.GetTaskStats(ctx)
}

// Environments lists the registered execution environment providers.
func (e *Engine) Environments() []environment.ProviderInfo {
	return e.registry.List()
}

// DeleteTask removes a task record. A task currently executing in this
// process cannot be deleted.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	e.mu.Lock()
	_, running := e.active[id]
	e.mu.Unlock()
	if running {
		return fmt.Errorf("%w: task is running", ErrConflict)
	}
	return e.store.DeleteTask(ctx, id)
}

// Reconcile marks every running task with no live execution in this process
// as failed. Run at startup, it resolves tasks orphaned by a crash between
// the running transition and the terminal write. Returns the number of tasks
// reconciled.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	tasks, err := e.store.ListTasksByStatus(ctx, model.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("list running tasks: %w", err)
	}

	count := 0
	for _, task := range tasks {
		e.mu.Lock()
		_, live := e.active[task.ID]
		e.mu.Unlock()
		if live {
			continue
		}
		if err := e.store.UpdateTaskResult(ctx, task.ID, model.StatusFailed, nil, task.Stdout, task.Stderr, orphanedError); err != nil {
			return count, fmt.Errorf("reconcile task %s: %w", task.ID, err)
		}
		e.logger.Warn("reconciled orphaned task", "task_id", task.ID)
		count++
	}
	return count, nil
}

// Wait blocks until all in-flight executions complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// claim registers an execution attempt for the task id. It fails when the id
// is already executing or the task is not in the created state.
func (e *Engine) claim(task *model.Task) (context.Context, context.CancelFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.active[task.ID]; busy {
		return nil, nil, fmt.Errorf("%w: task already running", ErrConflict)
	}
	if task.Status != model.StatusCreated {
		return nil, nil, fmt.Errorf("%w: task is %s", ErrConflict, task.Status)
	}

	// The execution context is detached from the caller's: only timeout and
	// explicit Cancel stop a launched command.
	runCtx, cancel := context.WithCancel(context.Background())
	e.active[task.ID] = cancel
	e.wg.Add(1)
	return runCtx, cancel, nil
}

func (e *Engine) release(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
	cancel()
	e.wg.Done()
}

// finish persists a terminal outcome. Store failures here are logged; the
// caller still observes the outcome via the returned record on the next read.
func (e *Engine) finish(id string, outcome executor.Outcome) {
	err := e.store.UpdateTaskResult(context.Background(), id, outcome.Status,
		outcome.ExitCode, outcome.Stdout, outcome.Stderr, outcome.Error)
	if err != nil {
		e.logger.Error("persist terminal outcome", "task_id", id, "status", outcome.Status, "error", err)
	}
}
