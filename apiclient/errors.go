package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
)

// Kind classifies a failed API call by the corrective action it needs.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindRateLimited       Kind = "rate_limited"
	KindTransient         Kind = "transient"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindContractViolation Kind = "contract_violation"
	KindRequestFailed     Kind = "request_failed"
)

// User facing messages for failures without a usable server message.
const (
	MessageRateLimited = "You've hit a rate limit. Please wait a moment and try again."
	MessageTransient   = "We're experiencing a temporary issue. Please try again shortly."
	MessageGeneric     = "Request failed. Please try again."
)

// Error codes the API returns in its error envelope.
const (
	CodeOpportunityNotFound   = "OPPORTUNITY_NOT_FOUND"
	CodeProfileIncomplete     = "PROFILE_INCOMPLETE"
	CodeQuotaExceeded         = "QUOTA_EXCEEDED"
	CodeMagicTokenInvalid     = "MAGIC_TOKEN_INVALID"
	CodeMagicTokenExpired     = "MAGIC_TOKEN_EXPIRED"
	CodeMagicTokenAlreadyUsed = "MAGIC_TOKEN_ALREADY_USED"
	CodeRateLimited           = "RATE_LIMITED"
)

// ErrorEnvelope is the structured error body returned by the API.
type ErrorEnvelope struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Error is returned for every API response that is not a usable success.
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Details   map[string]any
	Kind      Kind
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap exposes the taxonomy sentinel so errors.Is works against
// internal/errors.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindUnauthenticated:
		return werrors.ErrUnauthenticated
	case KindRateLimited:
		return werrors.ErrRateLimited
	case KindTransient:
		return werrors.ErrTransient
	case KindValidation:
		return werrors.ErrValidation
	case KindNotFound:
		return werrors.ErrNotFound
	case KindForbidden:
		return werrors.ErrForbidden
	case KindConflict:
		return werrors.ErrConflict
	case KindContractViolation:
		return werrors.ErrContractViolation
	default:
		return werrors.ErrRequestFailed
	}
}

// AsError returns the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if werrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err is an API error with the given status and code.
func HasCode(err error, status int, code string) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == status && apiErr.Code == code
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindTransient
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusConflict:
		return KindConflict
	default:
		return KindRequestFailed
	}
}

func userMessage(status int, envelope *ErrorEnvelope) string {
	if status == http.StatusTooManyRequests {
		return MessageRateLimited
	}
	if status >= http.StatusInternalServerError {
		return MessageTransient
	}
	if envelope != nil && envelope.Message != "" {
		return envelope.Message
	}
	return MessageGeneric
}

// parseEnvelope decodes body as an error envelope; nil when it is not one.
func parseEnvelope(body []byte) *ErrorEnvelope {
	if len(body) == 0 {
		return nil
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return &envelope
}

func newResponseError(status int, body []byte) *Error {
	envelope := parseEnvelope(body)
	apiErr := &Error{
		Status:  status,
		Message: userMessage(status, envelope),
		Kind:    kindForStatus(status),
	}
	if envelope != nil {
		apiErr.Code = envelope.ErrorCode
		apiErr.RequestID = envelope.RequestID
		apiErr.Details = envelope.Details
	}
	return apiErr
}

func newContractError(status int, method, path string, cause error) *Error {
	return &Error{
		Status:  status,
		Message: fmt.Sprintf("%s %s returned an unexpected response shape: %v", method, path, cause),
		Kind:    KindContractViolation,
	}
}
