package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/johnwmail/npaste/models"
)

// AdminAuth guards administrative routes. Keys are accepted from
// Authorization: Bearer <key> or X-Api-Key: <key>. With no keys configured
// every request is refused unless open is set.
func AdminAuth(keys []string, open bool) gin.HandlerFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if kk := strings.TrimSpace(k); kk != "" {
			allowed = append(allowed, []byte(kk))
		}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			if open {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, models.APIResponse{
				Status:  models.StatusFailure,
				Message: "Admin endpoints are disabled",
			})
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Status:  models.StatusFailure,
				Message: "Missing API key",
			})
			return
		}

		for _, k := range allowed {
			if subtle.ConstantTimeCompare([]byte(key), k) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
			Status:  models.StatusFailure,
			Message: "Unauthorized",
		})
	}
}

func requestKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if key := strings.TrimSpace(auth[7:]); key != "" {
			return key
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Api-Key"))
}
