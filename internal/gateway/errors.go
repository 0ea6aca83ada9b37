package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/learnhub-client/internal/errs"
)

// Kind classifies a failed call. Each kind has exactly one handling policy.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindServerFault    Kind = "server_fault"
	KindNetwork        Kind = "network"
	KindClient         Kind = "client"
)

// Error is returned for every non-2xx response and for calls that received no response.
// It always carries the original failure so callers can branch on Status locally.
type Error struct {
	Kind    Kind
	Status  int // 0 when no response was received
	Method  string
	Path    string
	Message string              // server-provided message, if any
	Fields  map[string][]string // field messages of a validation failure
	Body    []byte
	Err     error // transport error for KindNetwork
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("%s %s: network: %v", e.Method, e.Path, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Kind)
}

// Unwrap exposes the transport error of a network failure.
func (e *Error) Unwrap() error { return e.Err }

// Is maps kinds onto the shared sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case errs.ErrUnauthorized:
		return e.Kind == KindAuthentication
	case errs.ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// KindOf returns the kind carried by err, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// parseErrorBody extracts message and field errors; shapes it does not understand are ignored.
func parseErrorBody(body []byte) (string, map[string][]string) {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return "", nil
	}
	var msg string
	if json.Unmarshal(eb.Message, &msg) != nil || msg == "" {
		_ = json.Unmarshal(eb.Error, &msg)
	}
	var fields map[string][]string
	if json.Unmarshal(eb.Errors, &fields) != nil {
		fields = nil
	}
	return msg, fields
}

func newStatusError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status, Body: body}
	e.Message, e.Fields = parseErrorBody(body)
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthentication
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= http.StatusInternalServerError:
		e.Kind = KindServerFault
	default:
		e.Kind = KindClient
	}
	return e
}
