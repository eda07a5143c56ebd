// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. It renders the
// response itself: the panic has already unwound past the error renderer.
// The stack goes to the log, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperror.CodeInternal,
					"message": "internal server error",
					"details": gin.H{"request_id": c.GetString("request_id")},
				})
			}
		}()
		c.Next()
	}
}
