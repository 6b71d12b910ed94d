package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"

	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/response"
)

// CSRFField is the form field the HTML forms post their token in.
const CSRFField = "csrf_token"

const csrfRejected = "The form has expired or did not come from this dashboard. Reload the page and try again."

// CSRF guards the cookie-authenticated HTML forms. Safe methods pass and get a
// token; POSTs without a matching token are refused with 403 before any
// handler runs.
func CSRF(key []byte, secure bool) gin.HandlerFunc {
	protect := csrf.Protect(key,
		csrf.FieldName(CSRFField),
		csrf.Path("/"),
		csrf.Secure(secure),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, csrfRejected, http.StatusForbidden)
		})),
	)

	return func(c *gin.Context) {
		passed := false
		protect(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			_ = c.Error(appErrors.Clone(appErrors.ErrForbidden, csrfRejected))
			c.Abort()
		}
	}
}

// CSRFToken returns the token to embed in forms rendered for this request.
func CSRFToken(c *gin.Context) string {
	return csrf.Token(c.Request)
}

// JSONOnly refuses API POSTs whose body is not declared as JSON. A cross-site
// page cannot send that content type without passing the CORS preflight.
func JSONOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.ContentType() != gin.MIMEJSON {
			response.Error(c, appErrors.ErrUnsupportedMedia)
			c.Abort()
			return
		}
		c.Next()
	}
}
