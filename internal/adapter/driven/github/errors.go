package github

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the GitHub adapter.
var (
	// ErrMissingToken is returned before any network activity when the client
	// was built without a token.
	ErrMissingToken = errors.New("github token not configured: set GITHUB_TOKEN")

	// ErrRetriesExhausted wraps the last failure once every attempt was used.
	ErrRetriesExhausted = errors.New("remote call exhausted retries")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// GraphQLError reports an "errors" array delivered with a successful status.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}

// failureClass names the retry classification of err for logs and metrics.
func failureClass(err error) string {
	var statusErr *StatusError
	var gqlErr *GraphQLError
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &gqlErr):
		return "graphql"
	default:
		return "transport"
	}
}
