package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEndOfResults     = errors.New("no further result pages")
	ErrNoContainers     = errors.New("no article containers on page")
	ErrMissingField     = errors.New("required field missing")
	ErrInvalidRequest   = errors.New("invalid search request")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrOutOfOrder       = errors.New("pages must be requested in order")
	ErrBodyTooLarge     = errors.New("response body exceeds size limit")
)

// FetchError wraps errors that occur while obtaining a result page.
type FetchError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for page %d (%s, status %d): %v", e.Page, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError wraps errors that occur while extracting an article.
// Index is the zero-based container position, or -1 for page-level failures.
type ExtractionError struct {
	Page  int
	Index int
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("extraction error on page %d: %v", e.Page, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("extraction error for article %d on page %d (field=%s): %v", e.Index+1, e.Page, e.Field, e.Err)
	}
	return fmt.Sprintf("extraction error for article %d on page %d: %v", e.Index+1, e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExportError wraps errors that occur while serializing records.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error (%s): %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// DownloadError wraps errors that occur while downloading an image.
type DownloadError struct {
	URL   string
	Index int
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download error for image %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
