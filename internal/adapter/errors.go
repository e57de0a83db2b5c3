package adapter

import "errors"

var (
	// ErrUnauthorized corresponds to a 401 response: the token is
	// missing, expired or invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden corresponds to a 403 response.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound corresponds to a 404 response.
	ErrNotFound = errors.New("not found")
	// ErrConflict corresponds to a 409 response: the server rejected the
	// write because its copy diverged from what the client sent.
	ErrConflict = errors.New("conflict")
	// ErrServerInternal corresponds to any 5xx response.
	ErrServerInternal = errors.New("internal server error")
	// ErrBadRequest corresponds to a 400 response.
	ErrBadRequest = errors.New("bad request")
	// ErrUnexpectedStatus is returned for any other non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
