package arcgis

import (
	"errors"
	"fmt"
)

// PermanentError marks an upstream failure that must not be retried:
// a non-429 4xx status, a malformed response body, or an error envelope
// embedded in an otherwise-successful response.
type PermanentError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("arcgis: http %d from %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("arcgis: %s: %v", e.URL, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err carries a PermanentError in its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
