package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "Response.Decode")
}

// JSON returns the body as raw JSON, or null for an empty body.
func (r *Response) JSON() json.RawMessage {
	if len(r.Body) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(r.Body)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    MessageFromBody(body),
		Body:       body,
	}
}

// MessageFromBody extracts the human readable message the backend puts in
// "message", "error" or "detail".
func MessageFromBody(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	switch {
	case m.Message != "":
		return m.Message
	case m.Error != "":
		return m.Error
	default:
		return m.Detail
	}
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
