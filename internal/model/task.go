package model

import (
	"errors"
	"time"
)

// ErrValidation is returned when a task definition is malformed.
var ErrValidation = errors.New("invalid task definition")

// Task status constants.
const (
	StatusCreated   = "created"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimedOut  = "timed_out"
)

// Execution environment constants.
const (
	EnvLocal     = "local"
	EnvSandbox   = "sandbox"
	EnvContainer = "container"
)

// DefaultTimeoutS is the default execution timeout in seconds when none is specified.
const DefaultTimeoutS = 30

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses have no outgoing transitions; a task is recreated, never
// reused, to run again.
var validTransitions = map[string]map[string]bool{
	StatusCreated: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusTimedOut:  true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether the given status is a terminal state.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusTimedOut
}

// ValidEnvironment reports whether the given environment kind is known.
func ValidEnvironment(env string) bool {
	switch env {
	case EnvLocal, EnvSandbox, EnvContainer:
		return true
	}
	return false
}

// Task represents a named, durably recorded unit of delegated command execution.
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Command      string     `json:"command"`
	Environment  string     `json:"environment"`
	Status       string     `json:"status"`
	TimeoutS     int        `json:"timeout_s"`
	WorkingDir   string     `json:"working_dir,omitempty"`
	AllowedPaths []string   `json:"allowed_paths,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Stdout       string     `json:"stdout,omitempty"`
	Stderr       string     `json:"stderr,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
