package readeck

import "fmt"

// AuthError means the token is missing, invalid, or was rejected by the
// Readeck server (HTTP 401/403).
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "readeck: not authenticated"
	}
	return fmt.Sprintf("readeck: authentication rejected (HTTP %d)", e.Status)
}

// ValidationError means the server refused the request as malformed
// (any 4xx other than auth and not-found).
type ValidationError struct {
	Status int
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("readeck: invalid request (HTTP %d): %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("readeck: invalid request (HTTP %d)", e.Status)
}

// NotFoundError means the referenced bookmark does not exist for this
// token's account.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return "readeck: not found"
	}
	return fmt.Sprintf("readeck: bookmark %s not found", e.ID)
}

// UpstreamError covers network failures, timeouts, and 5xx responses.
// Surfaced only after the bounded retry is exhausted.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("readeck: upstream failure: %v", e.Err)
	}
	return fmt.Sprintf("readeck: upstream failure (HTTP %d)", e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
