package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Search session errors
	ErrDispatchFailed  = fmt.Errorf("dispatch failed")
	ErrSessionDetached = fmt.Errorf("search session detached")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// DispatchFailedError reports that one backend could not start a query.
//
// It matches both [ErrDispatchFailed] and the underlying cause with [errors.Is].
type DispatchFailedError struct {
	Backend string
	Err     error
}

func (e *DispatchFailedError) Error() string {
	return fmt.Sprintf("%s backend: %v: %v", e.Backend, ErrDispatchFailed, e.Err)
}

func (e *DispatchFailedError) Unwrap() []error {
	return []error{ErrDispatchFailed, e.Err}
}
