// Package middleware holds the gin middleware chain of the v1 API: tracing,
// access logs, tenant binding, authentication and error rendering.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/pkg/logger"
)

// Recovery converts a panicking handler into a 500 INTERNAL_ERROR. The stack
// is logged; the client only gets the request id to quote.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "handler panicked",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", appctx.GetRequestID(ctx)))
			c.Abort()
		}()
		c.Next()
	}
}
