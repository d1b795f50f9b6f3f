package extract

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrInvalidDocument is returned when an extraction response cannot be decoded.
	ErrInvalidDocument = errors.New("invalid extraction document")

	// ErrProcessingFailed is returned when the extraction backend fails.
	ErrProcessingFailed = errors.New("document processing failed")

	// ErrInvalidCredentials is returned when Google Cloud credentials are invalid
	// or do not have the necessary permissions.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrInvalidConfiguration is returned when the extractor configuration is incomplete.
	ErrInvalidConfiguration = errors.New("invalid extractor configuration")

	// ErrProcessorNotFound is returned when the Document AI processor cannot be found.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrDocumentTooLarge is returned when the file exceeds size limits.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrUnsupportedFormat is returned when the file type is not supported.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrContextCanceled is returned when processing is canceled via context.
	ErrContextCanceled = errors.New("document processing was canceled")

	// ErrNoCompletion is returned when the terms completer produced no usable answer.
	ErrNoCompletion = errors.New("no usable completion")
)

// ExtractionError wraps errors with context about the failed extraction step.
type ExtractionError struct {
	Op      string
	Err     error
	Details string

	// Filename is the uploaded file name, when known.
	Filename string
}

func (e *ExtractionError) Error() string {
	switch {
	case e.Details != "":
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	case e.Filename != "":
		return fmt.Sprintf("extract: %s failed (file: %s): %v", e.Op, e.Filename, e.Err)
	default:
		return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
	}
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps err unless it already is an ExtractionError.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return err
	}
	return &ExtractionError{Op: op, Err: err, Details: details}
}
