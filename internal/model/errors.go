package model

import (
	"errors"
	"fmt"
)

// Stages used by PreviewError and DownloadItemError.
const (
	StageFetch  = "fetch"
	StageDecode = "decode"
	StageWrite  = "write"
)

// FetchError means the page itself could not be retrieved or parsed.
// It is fatal to the scan that produced it.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PreviewError records why a single reference has no preview.
type PreviewError struct {
	Locator string
	Stage   string // StageFetch or StageDecode
	Err     error
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("preview %s stage=%s: %v", e.Locator, e.Stage, e.Err)
}

func (e *PreviewError) Unwrap() error { return e.Err }

// DownloadItemError records why a single selected reference was not saved.
type DownloadItemError struct {
	Locator string
	Stage   string // StageFetch or StageWrite
	Err     error
}

func (e *DownloadItemError) Error() string {
	return fmt.Sprintf("download %s stage=%s: %v", e.Locator, e.Stage, e.Err)
}

func (e *DownloadItemError) Unwrap() error { return e.Err }

// ValidationError is raised for user input that is rejected before any
// work starts: an empty URL, an empty selection, a missing or uncreatable
// destination.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
