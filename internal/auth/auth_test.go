package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/api/internal/config"
)

const (
	testIssuer   = "https://id.platewise.test"
	testAudience = "platewise-api"
	testKID      = "test-key"
)

var testSecret = []byte("oidc-test-secret")

func newTestVerifier(t *testing.T) *JWKSVerifier {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	jwk, err := jwkset.NewJWKFromKey(testSecret, jwkset.JWKOptions{
		Marshal: jwkset.JWKMarshalOptions{Private: true},
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgHS256,
			KID: testKID,
			USE: jwkset.UseSig,
		},
	})
	require.NoError(t, err)

	store := jwkset.NewMemoryStorage()
	require.NoError(t, store.KeyWrite(ctx, jwk))

	jwks, err := keyfunc.New(keyfunc.Options{Storage: store, Ctx: ctx})
	require.NoError(t, err)
	return newJWKSVerifier(jwks, testIssuer, testAudience)
}

func signOIDC(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header[jwkset.HeaderKID] = testKID
	s, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		UserID: "user-42",
		Email:  "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWKSVerifier_Validate(t *testing.T) {
	v := newTestVerifier(t)

	claims, err := v.Validate(signOIDC(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, HasAudience(claims, testAudience))
	assert.NoError(t, v.Close())
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name   string
		mutate func(*Claims)
	}{
		{"wrong issuer", func(c *Claims) { c.Issuer = "https://evil.test" }},
		{"wrong audience", func(c *Claims) { c.Audience = jwt.ClaimStrings{"someone-else"} }},
		{"expired", func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
		{"no expiry", func(c *Claims) { c.ExpiresAt = nil }},
		{"no subject", func(c *Claims) { c.UserID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			tt.mutate(&c)
			_, err := v.Validate(signOIDC(t, c))
			assert.Error(t, err)
		})
	}

	t.Run("unknown kid", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
		token.Header[jwkset.HeaderKID] = "rotated-away"
		s, err := token.SignedString(testSecret)
		require.NoError(t, err)
		_, err = v.Validate(s)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Validate("not-a-jwt")
		assert.Error(t, err)
	})
}

func TestDiscoverJWKSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"issuer":"x","jwks_uri":"https://id.platewise.test/keys"}`))
		case "/empty/.well-known/openid-configuration":
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	u, err := discoverJWKSURL(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://id.platewise.test/keys", u)

	_, err = discoverJWKSURL(ctx, srv.URL+"/empty")
	assert.ErrorContains(t, err, "jwks_uri not found")

	_, err = discoverJWKSURL(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestNewJWKSVerifier_RequiresIssuer(t *testing.T) {
	_, err := NewJWKSVerifier(&config.OIDCConfig{})
	assert.Error(t, err)
}

func TestLegacyToken(t *testing.T) {
	tok, err := IssueLegacyToken("user-7", "u7@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "platewise-api", claims.Issuer)

	_, err = ValidateLegacyToken(tok, "other-secret")
	assert.Error(t, err)

	noExpiry, err := IssueLegacyToken("user-7", "", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateLegacyToken(noExpiry, "s3cret")
	assert.NoError(t, err, "a non-positive ttl issues a token without expiry")

	empty, err := IssueLegacyToken("", "", "s3cret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateLegacyToken(empty, "s3cret")
	assert.Error(t, err)
}
