// Package registry holds the process-wide task registry and its single write
// path. Entries live for the lifetime of the process; only their backing files
// are reclaimed, by the cleanup sweeper. Under sustained load this is an
// unbounded-memory trade-off accepted for simplicity.
package registry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mediagrab/internal/domain"
)

// Update is one progress report. Percentage and Message are always written;
// Status, Filepath and DownloadName are additive and only applied when
// non-empty, never cleared by omission.
type Update struct {
	Percentage   float64
	Message      string
	Status       domain.TaskStatus
	Filepath     string
	DownloadName string
}

// Registry maps task ids to task state. One coarse lock guards the whole map:
// updates are small and infrequent relative to network and codec latency, so
// per-entry locking would buy nothing. Critical sections are in-memory map
// operations only.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]domain.Task
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		tasks:  make(map[string]domain.Task),
		logger: logger,
	}
}

// Report is the single write path into the registry. It performs a
// read-modify-write of the provided fields, leaves the rest untouched, and
// refreshes the task's timestamp. Creating a missing entry and updating an
// existing one are the same operation.
func (r *Registry) Report(id string, upd Update) {
	r.mu.Lock()
	task := r.tasks[id]
	task.ID = id
	task.Percentage = upd.Percentage
	task.Message = upd.Message
	if upd.Status != "" {
		task.Status = upd.Status
	}
	if upd.Filepath != "" {
		task.FinalFilepath = upd.Filepath
	}
	if upd.DownloadName != "" {
		task.DownloadName = upd.DownloadName
	}
	task.Timestamp = time.Now()
	r.tasks[id] = task
	r.mu.Unlock()

	r.logger.WithField("task_id", id).Infof("progress update: %s at %.1f%% - %q", task.Status, task.Percentage, task.Message)
}

// Snapshot returns a copy of the task safe to hand to callers outside the
// lock. Task carries no reference fields, so a value copy is a deep copy.
func (r *Registry) Snapshot(id string) (domain.Task, bool) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	r.mu.Unlock()
	return task, ok
}
