// Package backup exports point-in-time snapshots of the chat store and
// delivers them to external sinks with retry and partial-failure tolerance.
package backup

import "time"

// Method selects which sinks a backup run delivers to.
type Method string

const (
	MethodS3     Method = "s3"
	MethodGitHub Method = "github"
	MethodBoth   Method = "both"
)

// Valid reports whether the method is a known value.
func (m Method) Valid() bool {
	switch m {
	case MethodS3, MethodGitHub, MethodBoth:
		return true
	}
	return false
}

// Artifact is one serialized snapshot on local disk. It lives only for the
// duration of a single backup attempt.
type Artifact struct {
	Path      string
	Timestamp time.Time
	SizeBytes int64
}

// SinkResult records one sink's delivery attempt.
type SinkResult struct {
	Sink    string `json:"sink"`
	Success bool   `json:"success"`
	Ref     string `json:"ref,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Outcome is the consolidated result of one backup invocation. It is returned
// to the caller and forwarded to the notifier; it is never persisted here.
type Outcome struct {
	Success     bool          `json:"success"`
	Method      Method        `json:"method"`
	SinkResults []SinkResult  `json:"sink_results,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
	Attempts    int           `json:"attempts,omitempty"`
}

// Kind labels operator notifications.
type Kind string

const (
	KindFailure Kind = "backup_failure"
	KindSuccess Kind = "backup_success"
)
