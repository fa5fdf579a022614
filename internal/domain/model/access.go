package model

import "fmt"

// LoginTarget is the navigation target for unauthenticated users.
const LoginTarget = "login"

// Decision is the route guard's verdict for a protected view.
type Decision struct {
	Allow bool
	// Redirect is the navigation target when Allow is false.
	Redirect string
}

// Redirect is emitted when the core requires the caller to navigate away,
// currently only after the remote service rejects the credential.
type Redirect struct {
	Target string
	Reason ErrorKind
}

// LoginError is returned by a failed login exchange. Kind is
// ErrorKindLoginFailed when the service rejected the username and password and
// ErrorKindTransient for everything else.
type LoginError struct {
	Kind ErrorKind
	Err  error
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("login: %s", e.Kind)
	}
	return fmt.Sprintf("login: %s: %v", e.Kind, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
