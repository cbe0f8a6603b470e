package services

import (
	"errors"
	"fmt"
	"time"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindExtraction        ErrorKind = "extraction"
	KindRateLimit         ErrorKind = "rate_limit"
	KindTimeout           ErrorKind = "timeout"
	KindUpstream          ErrorKind = "upstream"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindInternal          ErrorKind = "internal"
)

// PipelineError is the typed failure of one pipeline stage. Message is safe to show callers.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	RetryAt time.Time
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func ValidationError(message string) error {
	return &PipelineError{Kind: KindValidation, Message: message}
}

// FileTooLargeError reports an upload above limit bytes.
func FileTooLargeError(limit int64) error {
	return ValidationError("File too large. Maximum size is " + formatSize(limit) + ".")
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

func ExtractionError(message string, cause error) error {
	return &PipelineError{Kind: KindExtraction, Message: message, Cause: cause}
}

func RateLimitError(message string, retryAt time.Time) error {
	return &PipelineError{Kind: KindRateLimit, Message: message, RetryAt: retryAt}
}

func TimeoutError(cause error) error {
	return &PipelineError{
		Kind:    KindTimeout,
		Message: "The operation took too long to complete. Please try again.",
		Cause:   cause,
	}
}

func UpstreamError(cause error) error {
	return &PipelineError{Kind: KindUpstream, Message: "generation service request failed", Cause: cause}
}

func MalformedResponseError(message string, cause error) error {
	return &PipelineError{Kind: KindMalformedResponse, Message: message, Cause: cause}
}

// KindOf returns the kind of the first PipelineError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
