package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/app"
	"github.com/kg-components/storefront/internal/config"
	"github.com/sirupsen/logrus"
)

const storefrontKey = "storefront"

// Storefronts hands out the storefront of a visitor
type Storefronts interface {
	Storefront(ctx context.Context, id, credential string) (*app.Storefront, error)
}

// Storefront attaches the visitor's storefront to the request. Visitors
// without a valid session cookie get a fresh one.
func Storefront(cfg *config.Config, sfs Storefronts, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.Storefront.SessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			SetCookie(c, cfg, cfg.Storefront.SessionCookie, id, 0)
		}
		credential, _ := c.Cookie(TokenCookie(cfg))

		sf, err := sfs.Storefront(c.Request.Context(), id, credential)
		if err != nil {
			log.WithError(err).WithField("storefront", id).Error("failed to open storefront")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "The store is unavailable. Please try again later.",
			})
			return
		}

		c.Set(storefrontKey, sf)
		c.Next()
	}
}

// CurrentStorefront returns the storefront attached by Storefront, or nil
func CurrentStorefront(c *gin.Context) *app.Storefront {
	raw, exists := c.Get(storefrontKey)
	if !exists {
		return nil
	}
	sf, _ := raw.(*app.Storefront)
	return sf
}

// TokenCookie names the cookie holding the visitor's access token
func TokenCookie(cfg *config.Config) string {
	return cfg.Storefront.SessionCookie + "_token"
}

// SetCookie writes an HTTP-only cookie scoped to the whole site. maxAge 0
// makes a browser-session cookie and a negative maxAge deletes it.
func SetCookie(c *gin.Context, cfg *config.Config, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", cfg.IsProduction(), true)
}
