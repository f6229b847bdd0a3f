// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"metaform/internal/core/apperror"
	appctx "metaform/internal/core/context"
	"metaform/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. The stack trace goes
// to the log only; the client sees the request ID and nothing else.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := c.Request.Context()
				logger.Error(ctx, "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(
					apperror.NewInternal(fmt.Errorf("panic: %v", err)).
						WithDetail("request_id", appctx.GetRequestID(ctx)),
				)
				c.Abort()
			}
		}()
		c.Next()
	}
}
