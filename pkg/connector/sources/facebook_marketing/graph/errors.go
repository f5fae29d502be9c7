package graph

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

// isThrottleCode reports Graph API error codes that mean "slow down"
func isThrottleCode(code int64) bool {
	switch code {
	case 4, 17, 32, 613:
		return true
	}
	return code >= 80000 && code <= 80014
}

// apiError converts a non-200 Graph API response into a typed error. body
// is the raw response body, expected to carry an "error" object.
func apiError(status int, body []byte) *errors.Error {
	e := gjson.GetBytes(body, "error")
	code := e.Get("code").Int()
	message := e.Get("message").String()
	if message == "" {
		message = http.StatusText(status)
	}

	var errType errors.ErrorType
	switch {
	case isThrottleCode(code) || status == http.StatusTooManyRequests:
		errType = errors.ErrorTypeRateLimit
	case e.Get("is_transient").Bool():
		errType = errors.ErrorTypeConnection
	case code == 190 || status == http.StatusUnauthorized:
		errType = errors.ErrorTypeAuthentication
	case code == 10 || (code >= 200 && code <= 299) || status == http.StatusForbidden:
		errType = errors.ErrorTypePermission
	case status >= http.StatusInternalServerError:
		errType = errors.ErrorTypeConnection
	case code == 803 || status == http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
	default:
		errType = errors.ErrorTypeData
	}

	err := errors.Newf(errType, "graph api error %d (status %d): %s", code, status, message).
		WithDetail("status", status).
		WithDetail("code", code)
	if sub := e.Get("error_subcode"); sub.Exists() {
		err = err.WithDetail("subcode", sub.Int())
	}
	if trace := e.Get("fbtrace_id"); trace.Exists() {
		err = err.WithDetail("fbtrace_id", trace.String())
	}
	return err
}
