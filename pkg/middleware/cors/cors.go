package cors

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Options configures the CORS middleware guarding the JSON API.
type Options struct {
	AllowedOrigins []string
	AllowedHeaders []string
	AllowedMethods []string
	MaxAgeSeconds  int
}

// New returns a CORS middleware. The session cookie is credentialed, so an
// empty origin list echoes same-origin requests only instead of "*".
func New(opts Options) gin.HandlerFunc {
	originSet := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}
	headers := strings.Join(orDefault(opts.AllowedHeaders, []string{"Content-Type", "X-Requested-With", "X-Request-ID"}), ", ")
	methods := strings.Join(orDefault(opts.AllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}), ", ")
	maxAge := opts.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 600
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed(originSet, origin, c.Request.Host) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
		}
		c.Writer.Header().Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowed(originSet map[string]struct{}, origin, host string) bool {
	origin = strings.TrimRight(origin, "/")
	if len(originSet) == 0 {
		return origin == "http://"+host || origin == "https://"+host
	}
	_, ok := originSet[origin]
	return ok
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
