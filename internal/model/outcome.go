package model

// Status classifies the result of one attempt at a task.
type Status int

const (
	// StatusSuccess means the file was fetched and moved to its final path.
	StatusSuccess Status = iota

	// StatusSkipped means no work was needed: a matching file already
	// existed, or a duplicate identifier was already claimed by an
	// earlier task.
	StatusSkipped

	// StatusResolutionFailed means the shared folder could not be
	// resolved to a downloadable file URL.
	StatusResolutionFailed

	// StatusDownloadFailed means the byte transfer or the final write
	// failed. No partial file remains at the destination path.
	StatusDownloadFailed
)

// String returns a short human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusResolutionFailed:
		return "resolution failed"
	case StatusDownloadFailed:
		return "download failed"
	default:
		return "unknown"
	}
}

// Failure reports whether the status represents a failed attempt.
func (s Status) Failure() bool {
	return s == StatusResolutionFailed || s == StatusDownloadFailed
}

// Outcome is the result of one attempt at a Task.
//
// A task accumulates one Outcome per attempt; the orchestrator keeps
// only the last one for tasks that exhaust their retry budget.
type Outcome struct {
	// Task is the task this outcome belongs to.
	Task *Task

	// Attempt is the 1-based attempt number that produced this outcome.
	Attempt int

	// Status classifies the result.
	Status Status

	// Err holds the failure detail. Empty unless Status is a failure.
	Err string

	// Path is the final destination path. Set on StatusSuccess, and on
	// StatusSkipped when an existing file satisfied the task.
	Path string
}
