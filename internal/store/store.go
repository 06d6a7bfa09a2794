package store

import (
	"context"
	"errors"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// ErrNotFound is returned when a task is not found.
var ErrNotFound = errors.New("task not found")

// ErrInvalidTransition is returned when a task status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStats holds aggregate execution statistics.
type TaskStats struct {
	Total              int            `json:"total"`
	CountByStatus      map[string]int `json:"count_by_status"`
	CountByEnvironment map[string]int `json:"count_by_environment"`
	AvgDurationMS      float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for tasks. Every mutation is
// durably flushed before the call returns; there is no write-behind caching.
type Store interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error)
	ListTasksByStatus(ctx context.Context, status string) ([]*model.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) error
	UpdateTaskResult(ctx context.Context, id, status string, exitCode *int, stdout, stderr, errMsg string) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskStats(ctx context.Context) (*TaskStats, error)
	Close() error
}
