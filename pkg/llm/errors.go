package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials is returned when neither an API key nor an access
	// token was configured for a remote classifier.
	ErrNoCredentials = errors.New("llm: API key or access token required")

	// ErrEmptyReply is returned when the model produced no text.
	ErrEmptyReply = errors.New("llm: empty reply")

	// ErrNoClassifier is returned by an empty Chain.
	ErrNoClassifier = errors.New("llm: no classifier configured")
)

// APIError is a non-success response from a remote model API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports HTTP 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }

// IsUnauthorized reports HTTP 401 or 403.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// ChainError collects the failures of every classifier in a Chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "llm chain: no errors recorded"
	case 1:
		return fmt.Sprintf("llm chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("llm chain: all %d classifiers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns every recorded error so errors.Is matches any of them.
func (e *ChainError) Unwrap() []error { return e.Errors }
