package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVisitor struct {
	signedIn bool
	admin    bool
	err      error
	checks   int
}

func (v *fakeVisitor) SignedIn() bool { return v.signedIn }

func (v *fakeVisitor) IsAdmin(ctx context.Context) (bool, error) {
	v.checks++
	return v.admin, v.err
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func gated(v *fakeVisitor, gate gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if v != nil {
			c.Set(storefrontKey, v)
		}
		c.Next()
	})
	r.GET("/*path", gate, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSession(t *testing.T) {
	t.Run("anonymous visitor goes to sign-in", func(t *testing.T) {
		w := serve(gated(&fakeVisitor{}, RequireSession()), http.MethodGet, "/orders")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth?redirect=%2Forders", w.Header().Get("Location"))
	})

	t.Run("query survives the round trip", func(t *testing.T) {
		w := serve(gated(&fakeVisitor{}, RequireSession()), http.MethodGet, "/cart?step=2")
		assert.Equal(t, "/auth?redirect=%2Fcart%3Fstep%3D2", w.Header().Get("Location"))
	})

	t.Run("missing storefront is treated as anonymous", func(t *testing.T) {
		w := serve(gated(nil, RequireSession()), http.MethodGet, "/account")
		assert.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("signed-in visitor passes", func(t *testing.T) {
		w := serve(gated(&fakeVisitor{signedIn: true}, RequireSession()), http.MethodGet, "/orders")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})
}

func TestRequireAdmin(t *testing.T) {
	t.Run("anonymous visitor goes to sign-in", func(t *testing.T) {
		v := &fakeVisitor{}
		w := serve(gated(v, RequireAdmin(quietLog())), http.MethodGet, "/admin")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth?redirect=%2Fadmin", w.Header().Get("Location"))
		assert.Zero(t, v.checks)
	})

	t.Run("non-admin goes home", func(t *testing.T) {
		v := &fakeVisitor{signedIn: true}
		w := serve(gated(v, RequireAdmin(quietLog())), http.MethodGet, "/admin/orders")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("lookup failure denies", func(t *testing.T) {
		v := &fakeVisitor{signedIn: true, admin: true, err: errors.New("boom")}
		w := serve(gated(v, RequireAdmin(quietLog())), http.MethodGet, "/admin")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("admin passes and the flag is read on every request", func(t *testing.T) {
		v := &fakeVisitor{signedIn: true, admin: true}
		r := gated(v, RequireAdmin(quietLog()))

		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin").Code)
		v.admin = false
		assert.Equal(t, http.StatusFound, serve(r, http.MethodGet, "/admin").Code)
		assert.Equal(t, 2, v.checks)
	})
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/orders", "/orders"},
		{"/cart?step=2", "/cart?step=2"},
		{"", "/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"orders", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeRedirect(tt.target), "target %q", tt.target)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Security: config.SecurityConfig{
		CORSAllowedOrigins: []string{"https://kgcomponents.com", "*.kgcomponents.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
	}}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.kgcomponents.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.kgcomponents.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://elsewhere.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://kgcomponents.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitWithoutRedisPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Security: config.SecurityConfig{RateLimitPerMinute: 1}}
	r := gin.New()
	r.Use(RateLimit(cfg, nil, quietLog()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	}
}

func TestSignInURL(t *testing.T) {
	assert.Equal(t, "/auth?redirect=%2F", SignInURL("//evil.example"))
	assert.Equal(t, "/auth?redirect=%2Fadmin%2Forders", SignInURL("/admin/orders"))
}
