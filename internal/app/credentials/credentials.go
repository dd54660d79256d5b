package credentials

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Config struct {
	Provider     string   `flag:"provider" desc:"credential provider, one of: none, static, client-credentials" default:"none"`
	Token        string   `flag:"token" desc:"bearer token used by the static provider"`
	TokenUrl     string   `flag:"token-url" desc:"oauth2 token endpoint used by the client-credentials provider"`
	ClientId     string   `flag:"client-id" desc:"oauth2 client id"`
	ClientSecret string   `flag:"client-secret" desc:"oauth2 client secret"`
	Scopes       []string `flag:"scopes" desc:"oauth2 scopes" default:"https://management.azure.com/.default"`
}

// Provider supplies the bearer token attached to every fetch. An empty
// token means requests are sent unauthenticated.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

func New(config *Config) (Provider, error) {
	switch config.Provider {
	case "", "none":
		return None{}, nil
	case "static":
		if config.Token == "" {
			return nil, errors.New("static credential provider requires a token")
		}
		return Static(config.Token), nil
	case "client-credentials":
		if config.TokenUrl == "" || config.ClientId == "" || config.ClientSecret == "" {
			return nil, errors.New("client-credentials provider requires a token url, client id, and client secret")
		}
		return NewClientCredentials(&clientcredentials.Config{
			ClientID:     config.ClientId,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenUrl,
			Scopes:       config.Scopes,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported credential provider %q", config.Provider)
	}
}

type None struct{}

func (None) Token(context.Context) (string, error) {
	return "", nil
}

type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

// ClientCredentials exchanges a client id and secret for an access
// token, tokens are cached until shortly before they expire.
type ClientCredentials struct {
	source oauth2.TokenSource
}

func NewClientCredentials(config *clientcredentials.Config) *ClientCredentials {
	return &ClientCredentials{
		source: config.TokenSource(context.Background()),
	}
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	token, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to acquire token: %w", err)
	}
	return token.AccessToken, nil
}
