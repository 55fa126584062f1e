package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnwmail/npaste/models"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 JSON envelope
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.APIResponse{
					Status:  models.StatusFailure,
					Message: "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
