package domain

import "time"

type TaskStatus string

const (
	TaskStatusQueued      TaskStatus = "queued"
	TaskStatusStarting    TaskStatus = "starting"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusProcessing  TaskStatus = "processing"
	TaskStatusComplete    TaskStatus = "complete"
	TaskStatusError       TaskStatus = "error"

	// TaskStatusNotFound is a pseudo-status for queries against ids that were
	// never registered. It is never stored.
	TaskStatusNotFound TaskStatus = "not_found"
)

// Terminal reports whether no further writes will occur for a task in this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusError
}

// Task is one user-initiated download/convert job and its mutable progress
// record. The download stage contributes 0-90 of Percentage, finalization
// 90-100.
type Task struct {
	ID            string     `json:"-"`
	Status        TaskStatus `json:"status,omitempty"`
	Percentage    float64    `json:"percentage"`
	Message       string     `json:"message"`
	FinalFilepath string     `json:"final_filepath,omitempty"`
	DownloadName  string     `json:"download_name,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}
