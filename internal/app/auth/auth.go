package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextIdentityKey = "auth.identity"

// Identity is the authenticated caller of an api request.
type Identity struct {
	Subject string
	Claims  jwt.MapClaims
}

// Error is an authentication failure, it always maps to 401.
type Error struct {
	Message   string
	Challenge string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, *Error)
}

// New returns nil when authentication is disabled.
func New(config *Config) (Authenticator, error) {
	if config == nil {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	if provider == "" && len(config.Basic) > 0 {
		provider = "basic"
	}

	switch provider {
	case "":
		return nil, nil
	case "basic":
		a, err := newBasicAuthenticator(config.Basic)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "jwt":
		a, err := newJWTAuthenticator(&config.JWT)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", config.Provider)
	}
}

// GinMiddleware rejects unauthenticated requests with a 401 and stores
// the identity of authenticated ones on the gin context.
func GinMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}

		identity, err := a.Authenticate(c.Request)
		if err != nil {
			slog.Debug("request not authenticated", "path", c.FullPath(), "err", err)

			c.Header("WWW-Authenticate", err.Challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    4010,
					"message": err.Message,
				},
			})
			return
		}

		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// FromContext returns the identity set by GinMiddleware, if any.
func FromContext(c *gin.Context) *Identity {
	if v, ok := c.Get(contextIdentityKey); ok {
		if identity, ok := v.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// Basic

type basicAuthenticator struct {
	credentials map[string]string
}

func newBasicAuthenticator(credentials map[string]string) (*basicAuthenticator, error) {
	sanitized := map[string]string{}
	for user, pass := range credentials {
		if user = strings.TrimSpace(user); user != "" {
			sanitized[user] = pass
		}
	}

	if len(sanitized) == 0 {
		return nil, errors.New("basic auth provider requires credentials")
	}

	return &basicAuthenticator{credentials: sanitized}, nil
}

func (a *basicAuthenticator) Authenticate(r *http.Request) (*Identity, *Error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, basicUnauthorized(errors.New("missing basic auth header"))
	}

	expected, exists := a.credentials[username]
	if !exists || subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
		return nil, basicUnauthorized(errors.New("invalid credentials"))
	}

	return &Identity{Subject: username}, nil
}

func basicUnauthorized(cause error) *Error {
	return &Error{
		Message:   "unauthorized",
		Challenge: `Basic realm="resmon"`,
		Err:       cause,
	}
}

// JWT

type jwtAuthenticator struct {
	key    any
	parser *jwt.Parser
}

func newJWTAuthenticator(config *JWTConfig) (*jwtAuthenticator, error) {
	algorithm := config.Algorithm
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown jwt signing algorithm %q", algorithm)
	}

	material, err := keyMaterial(config)
	if err != nil {
		return nil, err
	}

	key, err := verificationKey(method.Alg(), material)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
	}
	if config.ClockSkew > 0 {
		opts = append(opts, jwt.WithLeeway(config.ClockSkew))
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if len(config.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(config.Audience...))
	}

	return &jwtAuthenticator{
		key:    key,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (a *jwtAuthenticator) Authenticate(r *http.Request) (*Identity, *Error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, bearerUnauthorized("missing bearer token", nil)
	}

	claims := jwt.MapClaims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, bearerUnauthorized("invalid token", err)
	}
	if !parsed.Valid {
		return nil, bearerUnauthorized("invalid token", errors.New("token validation failed"))
	}

	subject, _ := claims.GetSubject()
	return &Identity{Subject: subject, Claims: claims}, nil
}

func bearerUnauthorized(message string, cause error) *Error {
	return &Error{
		Message:   message,
		Challenge: "Bearer",
		Err:       cause,
	}
}

func keyMaterial(config *JWTConfig) ([]byte, error) {
	if config.KeyFile != "" {
		data, err := os.ReadFile(config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt key file: %w", err)
		}
		return data, nil
	}
	if config.Key != "" {
		return []byte(config.Key), nil
	}
	return nil, errors.New("jwt key or key-file must be provided")
}

func verificationKey(algorithm string, material []byte) (any, error) {
	switch algorithm {
	case jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg():
		return material, nil
	case jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg():
		return jwt.ParseRSAPublicKeyFromPEM(material)
	case jwt.SigningMethodES256.Alg(), jwt.SigningMethodES384.Alg(), jwt.SigningMethodES512.Alg():
		return jwt.ParseECPublicKeyFromPEM(material)
	case jwt.SigningMethodEdDSA.Alg():
		return jwt.ParseEdPublicKeyFromPEM(material)
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
}
