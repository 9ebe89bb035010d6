package domain

import (
	"strings"
	"time"
)

// JobStatus is the canonical lifecycle state of a static ad generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// NormalizeStatus maps any status string reported by a server onto the
// canonical set. Unknown or empty values become JobStatusPending.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "succeeded", "complete":
		return JobStatusCompleted
	case "failed", "failure", "error":
		return JobStatusFailed
	case "processing", "running", "in_progress":
		return JobStatusProcessing
	default:
		return JobStatusPending
	}
}

// Terminal reports whether polling must stop for this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationJob is one static ad generation request against an origin entity.
// An empty ID means the job has not been adopted from a server response yet.
type GenerationJob struct {
	ID             string    `json:"id"`
	OriginID       string    `json:"origin_id"`
	Status         JobStatus `json:"status"`
	Progress       int       `json:"progress"`
	CurrentStep    string    `json:"current_step,omitempty"`
	Error          string    `json:"error_message,omitempty"`
	SelectedAngles []string  `json:"selected_angles"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the job has an id and has not reached a terminal state.
func (j GenerationJob) Active() bool {
	return j.ID != "" && !j.Status.Terminal()
}

// ClampProgress bounds a reported percentage to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
