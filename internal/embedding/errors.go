package embedding

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingAPIKey is returned when a remote provider has no credentials.
	ErrMissingAPIKey = errors.New("embedding: missing API key")
	// ErrUnknownProvider is returned by New for an unrecognised provider name.
	ErrUnknownProvider = errors.New("embedding: unknown provider")
	// ErrEmptyResponse is returned when a provider answers without embeddings.
	ErrEmptyResponse = errors.New("embedding: empty response")
	// ErrCountMismatch is returned when a provider returns a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding: vector count does not match input count")
)

// IsRetryable reports whether a failed embedding call may succeed when repeated.
// Rate limiting and server errors are retryable, other HTTP errors are not.
// Errors without a status (network failures, per-call timeouts) are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrCountMismatch) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableStatus(gerr.Code)
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return retryableStatus(oerr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
