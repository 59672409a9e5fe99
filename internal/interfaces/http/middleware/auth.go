// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Visitor is what the gates need to know about the caller
type Visitor interface {
	SignedIn() bool
	IsAdmin(ctx context.Context) (bool, error)
}

// RequireSession sends anonymous visitors to the sign-in page, remembering
// where they were going.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := visitor(c)
		if !ok || !v.SignedIn() {
			c.Redirect(http.StatusFound, SignInURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin sends non-admins home. The flag is read from the profile on
// every request so a revoked admin loses access immediately.
func RequireAdmin(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := visitor(c)
		if !ok || !v.SignedIn() {
			c.Redirect(http.StatusFound, SignInURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		isAdmin, err := v.IsAdmin(c.Request.Context())
		if err != nil {
			log.WithError(err).Warn("failed to read admin flag")
			isAdmin = false
		}
		if !isAdmin {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SignInURL is the sign-in page with a redirect back to target
func SignInURL(target string) string {
	return "/auth?redirect=" + url.QueryEscape(SafeRedirect(target))
}

// SafeRedirect returns target when it is a local path and "/" otherwise
func SafeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") ||
		strings.HasPrefix(target, "/\\") {
		return "/"
	}
	return target
}

func visitor(c *gin.Context) (Visitor, bool) {
	raw, exists := c.Get(storefrontKey)
	if !exists {
		return nil, false
	}
	v, ok := raw.(Visitor)
	return v, ok
}
