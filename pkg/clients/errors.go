package clients

import (
	"fmt"
	"net/http"

	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

// Detail keys attached to service errors.
const (
	DetailStatus       = "status"
	DetailErrorCode    = "error_code"
	DetailErrorMessage = "error_message"
	DetailRequestID    = "request_id"
)

// errorBody is the payload the service sends with a failed request.
type errorBody struct {
	ErrorCode    string `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
	RequestID    string `json:"RequestId"`
}

// newServiceError maps a response with status >= 400 to a typed error.
// Payloads that are not the service's JSON error body fall back to the
// status line.
func newServiceError(result *Result) *errors.Error {
	body := errorBody{}
	if len(result.Payload) > 0 {
		if err := json.Unmarshal(result.Payload, &body); err != nil {
			body = errorBody{ErrorMessage: string(result.Payload)}
		}
	}
	if body.ErrorMessage == "" {
		body.ErrorMessage = result.Message
	}
	if body.RequestID == "" {
		body.RequestID = result.RequestID
	}

	errType := errors.ErrorTypeService
	if result.Status == http.StatusTooManyRequests {
		errType = errors.ErrorTypeRateLimit
	}

	msg := fmt.Sprintf("status %d", result.Status)
	if body.ErrorCode != "" {
		msg += " " + body.ErrorCode
	}
	msg += ": " + body.ErrorMessage
	if body.RequestID != "" {
		msg += " (request id " + body.RequestID + ")"
	}

	return errors.New(errType, msg).
		WithDetail(DetailStatus, result.Status).
		WithDetail(DetailErrorCode, body.ErrorCode).
		WithDetail(DetailErrorMessage, body.ErrorMessage).
		WithDetail(DetailRequestID, body.RequestID)
}

// ErrorCode returns the service error code carried by err, if any.
func ErrorCode(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return ""
	}
	code, _ := e.Detail(DetailErrorCode)
	s, _ := code.(string)
	return s
}

// StatusCode returns the HTTP status carried by a service error, or 0.
func StatusCode(err error) int {
	var e *errors.Error
	if !errors.As(err, &e) {
		return 0
	}
	status, _ := e.Detail(DetailStatus)
	n, _ := status.(int)
	return n
}
