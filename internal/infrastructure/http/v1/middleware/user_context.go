package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "docnum/internal/core/context"
)

// HeaderUserID attributes a request to an operator for audit entries.
// It is not authenticated.
const HeaderUserID = "X-User-ID"

// UserContext copies the X-User-ID header into the request context.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: uid})
			c.Request = c.Request.WithContext(ctx)
			c.Set("user_id", uid)
		}
		c.Next()
	}
}
