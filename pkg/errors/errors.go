package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an APIError
type Kind int

// Error kinds
const (
	KindUnknown Kind = iota
	KindAuthMissing
	KindPermissionUnresolved
	KindTransitionPrecondition
	KindTransitionConflict
	KindRemoteRejected
	KindNetworkFailure
	KindCanceled
	KindNotFound
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuthMissing:
		return "auth_missing"
	case KindPermissionUnresolved:
		return "permission_unresolved"
	case KindTransitionPrecondition:
		return "transition_precondition"
	case KindTransitionConflict:
		return "transition_conflict"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindNetworkFailure:
		return "network_failure"
	case KindCanceled:
		return "canceled"
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// DefaultFallback is shown when a remote rejection carries no message
const DefaultFallback = "request failed, please try again"

// APIError is the normalized error returned by the API client and the
// order controller. Message is only set when it can be shown to the user
// as-is (a server-provided message or a local validation message).
type APIError struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches any APIError of the same kind, so errors.Is(err, ErrAuthMissing) works.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.StatusCode == 0
}

// Sentinels for errors.Is comparisons
var (
	ErrAuthMissing            = &APIError{Kind: KindAuthMissing}
	ErrPermissionUnresolved   = &APIError{Kind: KindPermissionUnresolved}
	ErrTransitionPrecondition = &APIError{Kind: KindTransitionPrecondition}
	ErrTransitionConflict     = &APIError{Kind: KindTransitionConflict}
	ErrRemoteRejected         = &APIError{Kind: KindRemoteRejected}
	ErrNetworkFailure         = &APIError{Kind: KindNetworkFailure}
	ErrCanceled               = &APIError{Kind: KindCanceled}
	ErrNotFound               = &APIError{Kind: KindNotFound}
	ErrInvalidRequest         = &APIError{Kind: KindInvalidRequest}
)

func AuthMissing(message string, err error) *APIError {
	return &APIError{Kind: KindAuthMissing, Message: message, Err: err}
}

func PermissionUnresolved(message string) *APIError {
	return &APIError{Kind: KindPermissionUnresolved, Message: message}
}

func TransitionPrecondition(message string) *APIError {
	return &APIError{Kind: KindTransitionPrecondition, Message: message}
}

func TransitionConflict(message string) *APIError {
	return &APIError{Kind: KindTransitionConflict, Message: message}
}

// RemoteRejected builds the error for a non-2xx response; message is the
// body's message field and may be empty.
func RemoteRejected(statusCode int, message string) *APIError {
	kind := KindRemoteRejected
	if statusCode == http.StatusUnauthorized {
		kind = KindAuthMissing
	}
	return &APIError{Kind: kind, Message: message, StatusCode: statusCode}
}

func NetworkFailure(err error) *APIError {
	return &APIError{Kind: KindNetworkFailure, Err: err}
}

func Canceled(err error) *APIError {
	return &APIError{Kind: KindCanceled, Err: err}
}

// NotFound is a local lookup miss: an unknown view, resource or route.
func NotFound(message string) *APIError {
	return &APIError{Kind: KindNotFound, Message: message}
}

// InvalidRequest is a malformed request to the local surface.
func InvalidRequest(message string) *APIError {
	return &APIError{Kind: KindInvalidRequest, Message: message}
}

// KindOf returns the kind of the first APIError in err's chain.
func KindOf(err error) Kind {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsTransient reports whether the user may simply retry the action.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindRemoteRejected, KindNetworkFailure:
		return true
	}
	return false
}

// UserMessage derives the text shown to the user: a server or validation
// message first, then fallback for remote rejections, then the error's own
// message.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if fallback == "" {
		fallback = DefaultFallback
	}

	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	if apiErr.Kind == KindRemoteRejected {
		return fallback
	}
	if apiErr.Err != nil {
		return apiErr.Err.Error()
	}
	return fallback
}

// HTTPStatus maps a kind to the status code the local surface answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthMissing:
		return http.StatusUnauthorized
	case KindPermissionUnresolved:
		return http.StatusForbidden
	case KindTransitionPrecondition:
		return http.StatusUnprocessableEntity
	case KindTransitionConflict:
		return http.StatusConflict
	case KindRemoteRejected:
		return http.StatusBadGateway
	case KindNetworkFailure:
		return http.StatusServiceUnavailable
	case KindCanceled:
		return http.StatusRequestTimeout
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
