package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest  = errors.New("request rejected by router")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited by router")
	ErrUnavailable = errors.New("router unavailable")
)

// Error is a failure envelope returned by the router.
type Error struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.ErrorCode, e.Description)
}

// Unwrap maps the status code onto a sentinel for errors.Is.
func (e *Error) Unwrap() error {
	switch {
	case e.ErrorCode == http.StatusNotFound:
		return ErrNotFound
	case e.ErrorCode == http.StatusConflict:
		return ErrConflict
	case e.ErrorCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.ErrorCode >= 500:
		return ErrUnavailable
	case e.ErrorCode >= 400:
		return ErrBadRequest
	}
	return nil
}
