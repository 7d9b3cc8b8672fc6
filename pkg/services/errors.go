package services

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("download manager is closed")

	// ErrNoSources is returned for a requested chapter with no page references.
	ErrNoSources = errors.New("no page sources for chapter")

	// ErrCancelled is recorded for a chapter whose download was cancelled.
	ErrCancelled = errors.New("download cancelled")
)

// ChapterError attaches the failing chapter to a download error.
type ChapterError struct {
	ComicID   string
	ChapterID string
	Err       error
}

func (e *ChapterError) Error() string {
	return fmt.Sprintf("comic %s chapter %s: %v", e.ComicID, e.ChapterID, e.Err)
}

func (e *ChapterError) Unwrap() error {
	return e.Err
}
