package staticads

import "adstudio/internal/domain"

// EventKind names a user-facing transition.
type EventKind string

const (
	EventAuthenticationRequired EventKind = "authentication_required"
	EventValidationFailed       EventKind = "validation_failed"
	EventUsageLimitReached      EventKind = "usage_limit_reached"
	EventSubmissionStarted      EventKind = "submission_started"
	EventSubmissionAccepted     EventKind = "submission_accepted"
	EventSubmissionFailed       EventKind = "submission_failed"
	EventJobResumed             EventKind = "job_resumed"
	EventResultsArrived         EventKind = "results_arrived"
	EventJobCompleted           EventKind = "job_completed"
	EventJobFailed              EventKind = "job_failed"
)

// Event is delivered to the Notifier. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	JobID   string
	Angles  []string
	Results []domain.GeneratedResult
	Usage   domain.UsageCredit
	Err     error
}

// Notifier receives events synchronously. Events raised by polling are
// delivered on the poller goroutine, so a Notifier must not call
// Session.Close.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
