package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/resonatehq/resmon/internal/app/credentials"
)

var ErrBodyTooLarge = errors.New("response body exceeds max body size")

//go:generate mockgen -source=fetcher.go -destination=mock_fetcher.go -package=fetcher

type Config struct {
	BaseUrl             string        `flag:"base-url" desc:"resource manager base url" default:"https://management.azure.com"`
	Timeout             time.Duration `flag:"timeout" desc:"http request timeout" default:"30s"`
	ProvidersApiVersion string        `flag:"providers-api-version" desc:"api version used to query resource providers" default:"2021-04-01"`
	MaxBodySize         int64         `flag:"max-body-size" desc:"max size in bytes of a fetched representation" default:"10485760"`
}

// Fetcher returns the current textual representation of a resource.
type Fetcher interface {
	Get(ctx context.Context, resourceId string, apiVersion string) (string, error)
}

// Resolver determines the api version to use for a resource when the
// caller does not provide one.
type Resolver interface {
	ResolveApiVersion(ctx context.Context, resourceId string) (string, error)
}

// RequestFailedError covers every fetch failure: transport errors,
// credential errors, and non-2xx responses (StatusCode is zero when
// no response was received).
type RequestFailedError struct {
	ResourceId string
	StatusCode int
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request for %s failed: %v", e.ResourceId, e.Err)
	}
	return fmt.Sprintf("request for %s failed with status %d", e.ResourceId, e.StatusCode)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

type Client struct {
	config      *Config
	client      *http.Client
	credentials credentials.Provider
}

func New(config *Config, credentials credentials.Provider) *Client {
	return &Client{
		config:      config,
		client:      &http.Client{Timeout: config.Timeout},
		credentials: credentials,
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("fetcher(url=%s)", c.config.BaseUrl)
}

func (c *Client) Get(ctx context.Context, resourceId string, apiVersion string) (string, error) {
	body, status, err := c.get(ctx, c.url(resourceId, apiVersion))
	if err != nil || status < 200 || status > 299 {
		return "", &RequestFailedError{ResourceId: resourceId, StatusCode: status, Err: err}
	}

	return string(body), nil
}

type provider struct {
	Namespace     string         `json:"namespace"`
	ResourceTypes []resourceType `json:"resourceTypes"`
}

type resourceType struct {
	ResourceType string   `json:"resourceType"`
	ApiVersions  []string `json:"apiVersions"`
}

// ResolveApiVersion looks up the resource provider of resourceId and
// returns the newest stable api version of its resource type, or the
// newest preview version when no stable version exists.
func (c *Client) ResolveApiVersion(ctx context.Context, resourceId string) (string, error) {
	subscription, namespace, typ, err := ParseResourceId(resourceId)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/subscriptions/%s/providers/%s", subscription, namespace)

	body, status, err := c.get(ctx, c.url(path, c.config.ProvidersApiVersion))
	if err != nil || status < 200 || status > 299 {
		return "", &RequestFailedError{ResourceId: path, StatusCode: status, Err: err}
	}

	var p provider
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("failed to parse provider %s: %w", namespace, err)
	}

	for _, rt := range p.ResourceTypes {
		if strings.EqualFold(rt.ResourceType, typ) {
			if v, ok := latest(rt.ApiVersions); ok {
				return v, nil
			}
			break
		}
	}

	return "", fmt.Errorf("no api version found for resource type %s/%s", namespace, typ)
}

func (c *Client) url(path string, apiVersion string) string {
	return fmt.Sprintf(
		"%s/%s?api-version=%s",
		strings.TrimRight(c.config.BaseUrl, "/"),
		strings.TrimLeft(path, "/"),
		url.QueryEscape(apiVersion),
	)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	token, err := c.credentials.Token(ctx)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.config.MaxBodySize+1))
	if err != nil {
		return nil, res.StatusCode, err
	}
	if int64(len(body)) > c.config.MaxBodySize {
		return nil, res.StatusCode, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.config.MaxBodySize)
	}

	return body, res.StatusCode, nil
}

// ParseResourceId extracts the subscription, provider namespace and
// (possibly nested) resource type from a resource id of the form
// /subscriptions/{s}/resourceGroups/{g}/providers/{ns}/{type}/{name}[/{child}/{name}...].
func ParseResourceId(resourceId string) (string, string, string, error) {
	segments := strings.Split(strings.Trim(resourceId, "/"), "/")

	var subscription string
	if len(segments) >= 2 && strings.EqualFold(segments[0], "subscriptions") {
		subscription = segments[1]
	}

	providers := -1
	for i, s := range segments {
		if strings.EqualFold(s, "providers") {
			providers = i
		}
	}

	if subscription == "" || providers < 0 || providers+2 >= len(segments) {
		return "", "", "", fmt.Errorf("unable to parse resource id %q", resourceId)
	}

	namespace := segments[providers+1]

	var types []string
	for i := providers + 2; i < len(segments); i += 2 {
		types = append(types, segments[i])
	}

	return subscription, namespace, strings.Join(types, "/"), nil
}

func latest(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}

	sorted := slices.Clone(versions)
	slices.SortFunc(sorted, func(a, b string) int {
		return strings.Compare(b, a)
	})

	for _, v := range sorted {
		if !strings.Contains(strings.ToLower(v), "preview") {
			return v, true
		}
	}

	return sorted[0], true
}
