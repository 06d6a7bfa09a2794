// Package engine orchestrates the task lifecycle: created tasks are guarded
// by the path policy, executed inside a provider's isolation context under a
// deadline, and their terminal outcome is durably recorded. The engine is the
// only writer of persisted task state.
package engine
