package session

import "fmt"

// Messages stored in Snapshot.Error.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginFailed        = "Login failed. Please try again."
	MsgRegisterFailed     = "Registration failed. Please try again."
	MsgCheckFailed        = "Unable to verify your session. Please try again."
)

// FormError is a server-side validation failure of a login or registration form.
// Fields maps form field names to their messages.
type FormError struct {
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *FormError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("form rejected: %s", e.Message)
	}
	return "form rejected"
}

func (e *FormError) Unwrap() error { return e.Err }

// Field returns the first message for name, or "".
func (e *FormError) Field(name string) string {
	if msgs := e.Fields[name]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}
