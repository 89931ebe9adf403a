package llm

import (
	"errors"
	"fmt"
)

// Kind classifies a failed analysis.
type Kind int

const (
	KindUnknown Kind = iota
	KindCredentialMissing
	KindInvalidURL
	KindInvalidResponse
	KindInvalidCredential
	KindRateLimited
	KindServerError
	KindInvalidResponseFormat
	KindIncompleteResponse
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindCredentialMissing:
		return "credential_missing"
	case KindInvalidURL:
		return "invalid_url"
	case KindInvalidResponse:
		return "invalid_response"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindInvalidResponseFormat:
		return "invalid_response_format"
	case KindIncompleteResponse:
		return "incomplete_response"
	case KindNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// Action is what a user can do about a failure.
type Action string

const (
	ActionNone     Action = "none"
	ActionRetry    Action = "retry"
	ActionSettings Action = "settings"
)

// Action returns the affordance a caller should offer for this kind.
func (k Kind) Action() Action {
	switch k {
	case KindCredentialMissing, KindInvalidCredential, KindInvalidURL:
		return ActionSettings
	case KindRateLimited, KindServerError, KindNetwork, KindInvalidResponse,
		KindInvalidResponseFormat, KindIncompleteResponse:
		return ActionRetry
	default:
		return ActionNone
	}
}

// Error is a classified analysis failure.
type Error struct {
	Kind Kind
	// StatusCode is set for KindServerError and any other failure that came
	// with an HTTP status.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target without a status code
// matches any status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.StatusCode == 0 || t.StatusCode == e.StatusCode)
}

var (
	ErrCredentialMissing     = &Error{Kind: KindCredentialMissing}
	ErrInvalidURL            = &Error{Kind: KindInvalidURL}
	ErrInvalidResponse       = &Error{Kind: KindInvalidResponse}
	ErrInvalidCredential     = &Error{Kind: KindInvalidCredential}
	ErrRateLimited           = &Error{Kind: KindRateLimited}
	ErrServerError           = &Error{Kind: KindServerError}
	ErrInvalidResponseFormat = &Error{Kind: KindInvalidResponseFormat}
	ErrIncompleteResponse    = &Error{Kind: KindIncompleteResponse}
	ErrNetwork               = &Error{Kind: KindNetwork}
	ErrUnknown               = &Error{Kind: KindUnknown}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func statusError(kind Kind, status int) *Error {
	return &Error{Kind: kind, StatusCode: status}
}

// KindOf returns the classification of err, or KindUnknown if err is not a
// classified analysis failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns a one-line message describing err for the end user.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unknown error occurred."
	}
	switch e.Kind {
	case KindCredentialMissing:
		return "API key not configured. Please add your API key in Settings."
	case KindInvalidURL:
		return "Invalid API URL."
	case KindInvalidResponse:
		return "Invalid response from server."
	case KindInvalidCredential:
		return "Invalid API key. Please check your settings."
	case KindRateLimited:
		return "Rate limit exceeded. Please try again in a moment."
	case KindServerError:
		return fmt.Sprintf("API error: %d", e.StatusCode)
	case KindInvalidResponseFormat:
		return "Invalid AI response format."
	case KindIncompleteResponse:
		return "Incomplete AI response."
	case KindNetwork:
		return "Network error. Please check your internet connection."
	default:
		return "An unknown error occurred."
	}
}
