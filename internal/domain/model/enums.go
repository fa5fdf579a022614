package model

// Status is the retrieval state discriminator.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// ErrorKind classifies every failure the core can surface to callers.
type ErrorKind string

const (
	ErrorKindNone ErrorKind = ""
	// ErrorKindSessionExpired means the remote service rejected the stored credential.
	ErrorKindSessionExpired ErrorKind = "session_expired"
	// ErrorKindTransient covers network errors, server errors, and malformed responses.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindLoginFailed means the login exchange rejected the supplied username and password.
	ErrorKindLoginFailed ErrorKind = "login_failed"
)

// Message returns the user-facing text for the error kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindSessionExpired:
		return "Session expired, please log in again"
	case ErrorKindTransient:
		return "Failed to load cars"
	case ErrorKindLoginFailed:
		return "Invalid username or password"
	default:
		return ""
	}
}
