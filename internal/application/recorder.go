package application

import "time"

// Fetch outcomes reported to a Recorder.
const (
	OutcomeLoaded         = "loaded"
	OutcomeSessionExpired = "session_expired"
	OutcomeTransient      = "transient"
	OutcomeSuperseded     = "superseded"
	OutcomeLoginFailed    = "login_failed"
	OutcomeSuccess        = "success"
)

// Recorder receives retrieval and login outcomes for observability.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordFetch(outcome string, latency time.Duration)
	RecordLogin(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordFetch(string, time.Duration) {}
func (nopRecorder) RecordLogin(string)                {}
