package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned when the service answers with a non-2xx status.
// The body is never read in that case.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d %s", e.Code, e.Status)
}

func newStatusError(resp *resty.Response) *StatusError {
	code := resp.StatusCode()
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return &StatusError{Code: code, Status: text}
}

// TransportError wraps a failure to reach the service or to read from it.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
