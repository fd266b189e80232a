package transport

import (
	"errors"
	"fmt"
)

// ErrHTTPStatus marks a non-2xx response.
var ErrHTTPStatus = errors.New("unexpected http status")

// TransportError 重试耗尽（或遇到不可重试的状态码）后返回的错误
type TransportError struct {
	Method     string
	URL        string
	Attempts   int
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d after %d attempt(s): %s", e.Method, e.URL, e.StatusCode, e.Attempts, e.Body)
	}
	return fmt.Sprintf("%s %s: after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError 业务层错误：HTTP 200 但返回体携带非零 code，不重试
type APIError struct {
	URL  string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s (%s)", e.Code, e.Msg, e.URL)
}

// IsClientError reports whether err is a 4xx transport failure or a business error payload.
func IsClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.StatusCode >= 400 && tErr.StatusCode < 500
	}
	return false
}
