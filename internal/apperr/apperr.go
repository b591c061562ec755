// Package apperr holds the error kinds shared by services and the HTTP layer.
//
// Services wrap a kind with detail: fmt.Errorf("%w: name is required", apperr.ErrInvalidArgument).
// The HTTP layer maps kinds to status codes with errors.Is; any unwrapped error is internal.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream provider error")
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a client-safe message. Internal errors never leak detail.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal error"
	}
	msg := err.Error()
	// Drop wrapping prefixes like "campaigns: " so the client sees the kind and detail.
	for _, kind := range []error{ErrInvalidArgument, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrUpstream} {
		if i := strings.Index(msg, kind.Error()); i > 0 {
			return msg[i:]
		}
	}
	return msg
}
