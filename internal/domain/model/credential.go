package model

// Credential is the opaque bearer token issued by a successful login exchange.
// Nothing outside the session store inspects it; its String method redacts the
// value so an accidental %v in a log line never leaks it.
type Credential string

// String implements fmt.Stringer with a redacted value.
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// Value returns the raw token for attaching to outgoing requests.
func (c Credential) Value() string {
	return string(c)
}
