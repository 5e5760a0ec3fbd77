package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docnum/internal/core/apperror"
	"docnum/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(ctx, "request failed",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			} else {
				logger.Warn(ctx, "request rejected",
					"code", appErr.Code,
					"message", appErr.Message,
				)
			}

			details := appErr.Details
			if details == nil {
				details = map[string]any{}
			}

			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": details,
			})
			return
		}

		logger.Error(ctx, "unhandled error", "error", err)

		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		})
	}
}
