package data

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Store used after Close.
var ErrClosed = errors.New("store is closed")

// DeserializeError reports a persisted blob that could not be decoded.
type DeserializeError struct {
	Err error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", StorageKey, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}
