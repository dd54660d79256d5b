package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name     string
		config   *Config
		disabled bool
		err      bool
	}{
		{name: "nil", config: nil, disabled: true},
		{name: "empty", config: &Config{}, disabled: true},
		{name: "implicit basic", config: &Config{Basic: map[string]string{"user": "pass"}}},
		{name: "basic without credentials", config: &Config{Provider: "basic"}, err: true},
		{name: "basic with blank user", config: &Config{Provider: "basic", Basic: map[string]string{" ": "pass"}}, err: true},
		{name: "jwt", config: &Config{Provider: "JWT", JWT: JWTConfig{Key: "secret"}}},
		{name: "jwt without key", config: &Config{Provider: "jwt"}, err: true},
		{name: "jwt unknown algorithm", config: &Config{Provider: "jwt", JWT: JWTConfig{Algorithm: "nope", Key: "secret"}}, err: true},
		{name: "unknown provider", config: &Config{Provider: "oauth"}, err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, err := New(tc.config)
			if tc.err {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.disabled, a == nil)
		})
	}
}

func TestBasicAuthenticator(t *testing.T) {
	a, err := New(&Config{Provider: "basic", Basic: map[string]string{"user": "pass"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("user", "pass")
	identity, authErr := a.Authenticate(req)
	require.Nil(t, authErr)
	assert.Equal(t, "user", identity.Subject)

	for _, set := range []func(*http.Request){
		func(r *http.Request) {},
		func(r *http.Request) { r.SetBasicAuth("user", "wrong") },
		func(r *http.Request) { r.SetBasicAuth("other", "pass") },
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		set(req)

		_, authErr := a.Authenticate(req)
		require.NotNil(t, authErr)
		assert.Equal(t, `Basic realm="resmon"`, authErr.Challenge)
	}
}

func TestJWTAuthenticator(t *testing.T) {
	config := JWTConfig{Algorithm: "HS256", Issuer: "resmon", Audience: []string{"resmon"}, Key: "secret", ClockSkew: time.Second}
	a, err := New(&Config{Provider: "jwt", JWT: config})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, config, "user", "secret"))
	identity, authErr := a.Authenticate(req)
	require.Nil(t, authErr)
	assert.Equal(t, "user", identity.Subject)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic dXNlcjpwYXNz",
		"wrong key":  "Bearer " + issue(t, config, "user", "other"),
		"garbage":    "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}

			_, authErr := a.Authenticate(req)
			require.NotNil(t, authErr)
			assert.Equal(t, "Bearer", authErr.Challenge)
		})
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	a, err := New(&Config{Basic: map[string]string{"user": "pass"}})
	require.NoError(t, err)

	router := gin.New()
	router.Use(GinMiddleware(a))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, FromContext(c).Subject)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="resmon"`, w.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":{"code":4010,"message":"unauthorized"}}`, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("user", "pass")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user", w.Body.String())
}

func TestGinMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinMiddleware(nil))
	router.GET("/", func(c *gin.Context) {
		assert.Nil(t, FromContext(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func issue(t *testing.T, config JWTConfig, subject string, key string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    config.Issuer,
		Audience:  jwt.ClaimStrings(config.Audience),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)

	return signed
}
