package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadFailed is returned when a recording upload fails on the
	// network or with a non-2xx response.
	ErrUploadFailed = errors.New("upload failed")
	// ErrMetadataFetchFailed is returned when the visit record cannot be loaded.
	ErrMetadataFetchFailed = errors.New("visit metadata fetch failed")
	// ErrTranscriptionFetchFailed is returned when no prior transcription could
	// be loaded for a visit. Callers treat it as "no recording yet".
	ErrTranscriptionFetchFailed = errors.New("transcription fetch failed")
	// ErrUpdateFailed is returned when a notes, status or type update fails.
	ErrUpdateFailed = errors.New("visit update failed")
)

// RequestError describes a failed backend call. It matches its Kind sentinel
// with errors.Is and unwraps to the transport error, if any.
type RequestError struct {
	Op         string
	Kind       error
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %v: status %d: %s", e.Op, e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
