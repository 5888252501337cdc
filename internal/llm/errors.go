package llm

import "errors"

var (
	// ErrNotConfigured indicates the selected provider has no credentials.
	ErrNotConfigured = errors.New("llm provider not configured")

	// ErrTimeout indicates the request exceeded the per-attempt timeout.
	ErrTimeout = errors.New("llm request timed out")

	// ErrUnavailable indicates the provider could not be reached or
	// answered with a server error.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("llm request rate limited")

	// ErrBadRequest indicates the provider rejected the request outright.
	// Retrying will not help.
	ErrBadRequest = errors.New("llm request rejected")

	// ErrInvalidOutput indicates the model response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid llm output format")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("llm retry attempts exhausted")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited)
}
