package predict

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FileField is the multipart field name the predict API reads the audio from
const FileField = "file"

var ErrMalformedResponse = errors.New("malformed predict response")

// ErrorResponse is the optional JSON body of a non-2xx predict response
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// APIError is returned when the predict API answered with a non-2xx status
type APIError struct {
	StatusCode int
	// Detail is the server-provided detail, empty when the body had none
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("predict request failed: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("predict request failed: status=%d, detail=%s", e.StatusCode, e.Detail)
}

// ClientError reports whether the API rejected the request itself
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// detailText extracts detail from an error body. String details are used
// verbatim, any other JSON value is kept in its compact encoded form.
func detailText(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s
	}
	if string(resp.Detail) == "null" {
		return ""
	}
	return string(resp.Detail)
}
