package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "KG Components"},
		JWT:      config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", AccessTokenExpiry: time.Hour},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	jm := NewJWTManager(testConfig())
	userID := uuid.New()

	token, issued, err := jm.GenerateAccessToken(userID, "ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, issued.SessionID())

	claims, err := jm.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, issued.SessionID(), claims.SessionID())
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTManager(testConfig()).GenerateAccessToken(uuid.New(), "ada@example.com")
	require.NoError(t, err)

	other := testConfig()
	other.JWT.Secret = "ffffffffffffffffffffffffffffffff"
	_, err = NewJWTManager(other).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTokenExpiry = -time.Minute
	jm := NewJWTManager(cfg)

	token, _, err := jm.GenerateAccessToken(uuid.New(), "ada@example.com")
	require.NoError(t, err)

	_, err = jm.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromHeader(""))
}

func TestPasswords(t *testing.T) {
	pm := NewPasswordManager(testConfig())

	hash, err := pm.HashPassword("resistor42")
	require.NoError(t, err)
	assert.NoError(t, pm.VerifyPassword("resistor42", hash))
	assert.Error(t, pm.VerifyPassword("capacitor42", hash))

	for _, weak := range []string{"short1", "allletters", "1234567890", "MyPassword9"} {
		assert.Error(t, ValidatePassword(weak), weak)
	}
}
