package kyc

import (
	"errors"
	"fmt"
)

// ErrMissingUploadTargets means a /get-urls response lacked one or more of
// the three upload destinations.
var ErrMissingUploadTargets = errors.New("upload targets missing from response")

// ErrMissingVerificationID means a /get-urls response lacked the kyc_id.
var ErrMissingVerificationID = errors.New("verification identifier missing from response")

// HTTPError represents a non-2xx HTTP response from the service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
