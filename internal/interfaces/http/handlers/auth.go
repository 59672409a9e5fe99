// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/interfaces/http/middleware"
	"github.com/kg-components/storefront/internal/store"
)

// AuthHandler handles the sign-in page and the account page
type AuthHandler struct {
	config *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

// SignInRequest is the body of POST /auth/sign-in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/sign-up
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// GetSession handles GET /auth
func (h *AuthHandler) GetSession(c *gin.Context) {
	sf := storefront(c)
	respond(c, http.StatusOK, "Session retrieved successfully", gin.H{
		"session":  sf.Session.State(),
		"redirect": middleware.SafeRedirect(c.Query("redirect")),
	})
}

// SignIn handles POST /auth/sign-in?redirect=
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	sf := storefront(c)
	if err := sf.Session.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		fail(c, err)
		return
	}
	h.signedIn(c)
}

// SignUp handles POST /auth/sign-up?redirect=
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	sf := storefront(c)
	if err := sf.Session.SignUp(c.Request.Context(), req.Email, req.Password, req.FullName); err != nil {
		fail(c, err)
		return
	}
	h.signedIn(c)
}

// SignOut handles POST /auth/sign-out
func (h *AuthHandler) SignOut(c *gin.Context) {
	sf := storefront(c)
	if err := sf.Session.SignOut(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	middleware.SetCookie(c, h.config, middleware.TokenCookie(h.config), "", -1)
	respond(c, http.StatusOK, "Signed out successfully", gin.H{"redirect": "/"})
}

// GetAccount handles GET /account
func (h *AuthHandler) GetAccount(c *gin.Context) {
	identity := storefront(c).Session.Identity()
	if identity == nil {
		fail(c, store.ErrNotAuthenticated)
		return
	}
	respond(c, http.StatusOK, "Profile retrieved successfully", identity)
}

// UpdateAccount handles PUT /account
func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	var req user.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	profile, err := storefront(c).Session.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", profile)
}

// signedIn stores the access token so an evicted storefront can restore the
// session, then answers with the sanitised redirect target.
func (h *AuthHandler) signedIn(c *gin.Context) {
	sf := storefront(c)
	if token := sf.AccessToken(c.Request.Context()); token != "" {
		middleware.SetCookie(c, h.config, middleware.TokenCookie(h.config), token, int(h.config.JWT.AccessTokenExpiry.Seconds()))
	}
	respond(c, http.StatusOK, "Signed in successfully", gin.H{
		"session":  sf.Session.State(),
		"redirect": middleware.SafeRedirect(c.Query("redirect")),
	})
}
