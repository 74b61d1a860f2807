package polygon

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned before any network call when the API key
// is absent or still set to a placeholder.
var ErrMissingCredential = errors.New("polygon: API key not configured (set POLYGON_API_KEY)")

// StatusError is an upstream response that is neither 2xx nor 404. It fails
// the whole batch.
type StatusError struct {
	Contract   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("polygon: %s -> %d", e.Contract, e.StatusCode)
	}
	return fmt.Sprintf("polygon: %s -> %d: %s", e.Contract, e.StatusCode, e.Body)
}
