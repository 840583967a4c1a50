// Package apperror defines the error type returned across setflow's layers.
// Handlers render it as {"error": {"code", "message", "details"}}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	CodeValidation      = "VALIDATION_ERROR"
	CodeTemplateInvalid = "TEMPLATE_INVALID"

	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeAssetUnavailable       = "ASSET_UNAVAILABLE"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeInUse                  = "ENTITY_IN_USE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	CodeUploadFailed = "UPLOAD_FAILED"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	CodeNotFound = "NOT_FOUND"

	CodeConflict    = "CONFLICT"
	CodeDuplicate   = "DUPLICATE_ENTRY"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is a classified error with an HTTP mapping.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail sets details[key] and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newErr(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

func NewValidation(message string) *AppError {
	return newErr(CodeValidation, http.StatusBadRequest, message)
}

// NewTemplateInvalid reports a spec-field template that failed save validation.
func NewTemplateInvalid(message string) *AppError {
	return newErr(CodeTemplateInvalid, http.StatusBadRequest, message)
}

func NewNotFound(entity string, id any) *AppError {
	return newErr(CodeNotFound, http.StatusNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewBusinessRule is a 422 with a caller-chosen code.
func NewBusinessRule(code, message string) *AppError {
	return newErr(code, http.StatusUnprocessableEntity, message)
}

// NewAssetUnavailable is returned when an asset's status forbids the operation.
func NewAssetUnavailable(assetID, status string) *AppError {
	return NewBusinessRule(CodeAssetUnavailable, fmt.Sprintf("asset is %s", status)).
		WithDetail("asset_id", assetID).
		WithDetail("status", status)
}

func NewInvalidTransition(entity, from, to string) *AppError {
	return NewBusinessRule(CodeInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewInUse is returned when deleting something that is still referenced.
func NewInUse(entity string, id any, refs int64) *AppError {
	return newErr(CodeInUse, http.StatusConflict, entity+" is still referenced").
		WithDetail("id", id).
		WithDetail("references", refs)
}

func NewConcurrentModification(entity string, id any) *AppError {
	return newErr(CodeConcurrentModification, http.StatusConflict,
		"record was changed by someone else, reload and retry").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewUploadFailed wraps an image or attachment storage failure.
func NewUploadFailed(what string, err error) *AppError {
	return newErr(CodeUploadFailed, http.StatusBadGateway, what+" upload failed").WithCause(err)
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	return newErr(CodeInternal, http.StatusInternalServerError, "internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return newErr(CodeUnauthorized, http.StatusUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return newErr(CodeForbidden, http.StatusForbidden, message)
}

func NewIdempotencyConflict(key string) *AppError {
	return newErr(CodeIdempotency, http.StatusConflict, "request with this idempotency key is in progress").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch means the key was reused with a different request body or user.
func NewIdempotencyMismatch(key string) *AppError {
	return newErr(CodeIdempotency, http.StatusUnprocessableEntity, "idempotency key reused for a different request").
		WithDetail("idempotency_key", key)
}

func NewConflict(message string) *AppError {
	return newErr(CodeConflict, http.StatusConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newErr(CodeDuplicate, http.StatusConflict, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsAppError finds an AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HTTPStatus maps any error to a status code; unknown errors are 500.
func HTTPStatus(err error) int {
	if ae, ok := AsAppError(err); ok {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}

func hasCode(err error, code string) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Code == code
}

func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation) || hasCode(err, CodeTemplateInvalid)
}

func IsConcurrentModification(err error) bool {
	return hasCode(err, CodeConcurrentModification)
}
