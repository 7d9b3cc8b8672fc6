package fetch

import "fmt"

// FetchError reports an asset that could not be fetched or copied into place.
type FetchError struct {
	Ref  string
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s to %s: %v", e.Ref, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is returned when a remote asset answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %s", e.Status)
}
