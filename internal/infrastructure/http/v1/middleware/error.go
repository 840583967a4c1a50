package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/pkg/logger"
)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error registered with c.Error. Internal
// causes are logged, never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		status, body := Render(c, c.Errors.Last().Err)
		c.JSON(status, body)
	}
}

// Render maps err to its status and response body.
func Render(c *gin.Context, err error) (int, ErrorBody) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err)
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		return appErr.HTTPStatus, ErrorBody{Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}}
	}
	if appErr.Err != nil {
		logger.Debug(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
	}
	return appErr.HTTPStatus, ErrorBody{Error: ErrorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}}
}
