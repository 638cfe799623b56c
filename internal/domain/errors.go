package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionConflict is returned when a scan or download is started while
	// the session is busy. The start is a no-op.
	ErrSessionConflict = errors.New("session busy")

	// ErrArchiveEmpty is returned when packaging is requested with nothing downloaded
	ErrArchiveEmpty = errors.New("no downloaded items to package")

	ErrInvalidRange    = errors.New("invalid identifier range")
	ErrSessionNotFound = errors.New("session not found")
	ErrArchiveNotFound = errors.New("archive not found")
	ErrItemNotFound    = errors.New("item not found")
)

// FetchError describes a failed payload or probe request
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsClientError reports a 4xx response, which retrying will not fix
func (e *FetchError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
