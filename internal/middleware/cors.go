package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods       = "GET, POST, OPTIONS"
	corsHeaders       = "Origin, Content-Type, Accept, X-Request-ID"
	corsExposeHeaders = "Content-Type, X-Request-ID"
)

// CORSConfig lists the UI origins allowed to call the local surface. "*"
// allows any origin.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowOrigins: []string{"*"}, MaxAge: 10 * time.Minute}
}

// CORS answers preflights itself and leaves requests without an Origin
// header untouched.
func CORS(config CORSConfig) gin.HandlerFunc {
	anyOrigin := false
	allowed := make(map[string]struct{}, len(config.AllowOrigins))
	for _, o := range config.AllowOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = struct{}{}
	}
	maxAge := strconv.Itoa(int(config.MaxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		value := origin
		if anyOrigin {
			value = "*"
		} else if _, ok := allowed[origin]; !ok {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", value)
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		h.Set("Access-Control-Max-Age", maxAge)
		if value != "*" {
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
