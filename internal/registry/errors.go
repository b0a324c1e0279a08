package registry

import (
	"fmt"
	"strings"
)

// Kind is the closed set of failure categories the registry can report.
type Kind int

const (
	KindUnexpectedResponse Kind = iota
	KindAccessDenied
	KindNonceTooSmall
	KindLoginFailed
	KindUnknownUser
	KindMissingField
	KindInvalidInteger
	KindUnexpectedUserID
)

func (k Kind) String() string {
	switch k {
	case KindAccessDenied:
		return "access denied"
	case KindNonceTooSmall:
		return "nonce too small"
	case KindLoginFailed:
		return "login failed"
	case KindUnknownUser:
		return "unknown user"
	case KindMissingField:
		return "missing field"
	case KindInvalidInteger:
		return "invalid integer"
	case KindUnexpectedUserID:
		return "unexpected user id"
	default:
		return "unexpected response"
	}
}

// parent returns the broader kind k also counts as, or k itself at the top.
func (k Kind) parent() Kind {
	switch k {
	case KindNonceTooSmall:
		return KindAccessDenied
	case KindMissingField, KindInvalidInteger, KindUnexpectedUserID:
		return KindUnexpectedResponse
	}
	return k
}

// Error is returned for every failure attributable to the registry: error
// documents, malformed records and unexpected HTTP statuses.
type Error struct {
	Kind Kind
	// Message is the registry's own text where there is one.
	Message string
	// Status is the HTTP status for transport-level failures, else 0.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("registry: %s: %v", msg, e.Cause)
	}
	return "registry: " + msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the kind sentinels, including the broader kind: a
// NonceTooSmall error is also ErrAccessDenied.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Status != 0 {
		return false
	}
	return e.Kind == t.Kind || e.Kind.parent() == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnexpectedResponse = &Error{Kind: KindUnexpectedResponse}
	ErrAccessDenied       = &Error{Kind: KindAccessDenied}
	ErrNonceTooSmall      = &Error{Kind: KindNonceTooSmall}
	ErrLoginFailed        = &Error{Kind: KindLoginFailed}
	ErrUnknownUser        = &Error{Kind: KindUnknownUser}
	ErrMissingField       = &Error{Kind: KindMissingField}
	ErrInvalidInteger     = &Error{Kind: KindInvalidInteger}
	ErrUnexpectedUserID   = &Error{Kind: KindUnexpectedUserID}
)

// classify maps a registry error message to its kind. The registry only
// offers free text, so this is the one place that knows its wording.
func classify(message string) Kind {
	switch {
	case strings.HasPrefix(message, "access denied"):
		if strings.Contains(message, "nonce must be bigger") {
			return KindNonceTooSmall
		}
		return KindAccessDenied
	case strings.HasPrefix(message, "login failed"):
		return KindLoginFailed
	case strings.HasPrefix(message, "user name unknown"):
		return KindUnknownUser
	}
	return KindUnexpectedResponse
}

func missingField(parent, child string) *Error {
	return &Error{Kind: KindMissingField, Message: fmt.Sprintf("Missing element '%s/%s'", parent, child)}
}

func invalidInteger(parent, child string, cause error) *Error {
	return &Error{Kind: KindInvalidInteger, Message: fmt.Sprintf("Expected integer at '%s/%s'", parent, child), Cause: cause}
}

func unexpectedUserID(selection string, ids []int64) *Error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return &Error{
		Kind:    KindUnexpectedUserID,
		Message: fmt.Sprintf("Unexpected user id on filtering %s for: [%s]", selection, strings.Join(parts, ", ")),
	}
}

func unexpected(format string, args ...any) *Error {
	return &Error{Kind: KindUnexpectedResponse, Message: fmt.Sprintf(format, args...)}
}
