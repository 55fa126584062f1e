package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// TestNowHeader carries a Unix millisecond timestamp that replaces the
// current time when test mode is on
const TestNowHeader = "x-test-now-ms"

const nowKey = "npaste.now"

// RequestClock fixes the request's notion of "now". In test mode a valid
// x-test-now-ms header overrides the wall clock.
func RequestClock(testMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		if testMode {
			if v := c.GetHeader(TestNowHeader); v != "" {
				if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
					now = time.UnixMilli(ms)
				}
			}
		}
		c.Set(nowKey, now.UTC())
		c.Next()
	}
}

// Now returns the time fixed by RequestClock, or the wall clock
func Now(c *gin.Context) time.Time {
	if v, ok := c.Get(nowKey); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Now().UTC()
}
