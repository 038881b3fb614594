package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

// remoteError accepts both the storefront envelope ({"error":{...}}) and the
// flat PostgREST body ({"code","message","details","hint"}).
type remoteError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (r remoteError) codeAndMessage() (string, string, bool) {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Code, r.Error.Message, true
	}
	if r.Message != "" {
		return r.Code, r.Message, true
	}
	return "", "", false
}

// ParseResponseError reads a non-2xx response and maps it to an error. The
// backend's message is preserved verbatim. The body is consumed and closed.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	var remote remoteError
	if json.Unmarshal(body, &remote) == nil {
		if code, msg, ok := remote.codeAndMessage(); ok {
			return mapRemoteError(resp.StatusCode, code, msg, service)
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return mapRemoteError(resp.StatusCode, "", text, service)
}

// ErrorFromServer converts a breaker-captured ServerError into the same shape
// ParseResponseError produces. Other errors pass through.
func ErrorFromServer(err error, service string) error {
	var se *ServerError
	if errors.As(err, &se) {
		return ParseResponseError(se.Response(), service)
	}
	return err
}

func mapRemoteError(status int, code, message, service string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(service, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(message)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: message,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	case status >= 500:
		if code != "" {
			return fmt.Errorf("%s server error (%d/%s): %s", service, status, code, message)
		}
		return fmt.Errorf("%s server error (%d): %s", service, status, message)
	default:
		if code == "" {
			code = "REMOTE_ERROR"
		}
		return &apperrors.AppError{Code: code, Message: message, Status: status}
	}
}

// IsClientError reports whether status is 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
