package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/resonatehq/resmon/internal/app/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resourceId = "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/frontDoors/fd1"

type failingProvider struct{}

func (failingProvider) Token(context.Context) (string, error) {
	return "", errors.New("no identity")
}

func newClient(url string, provider credentials.Provider) *Client {
	return New(&Config{
		BaseUrl:             url,
		Timeout:             1 * time.Second,
		ProvidersApiVersion: "2021-04-01",
		MaxBodySize:         1 << 20,
	}, provider)
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/frontDoors/fd1":
			assert.Equal(t, "2019-05-01", r.URL.Query().Get("api-version"))
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"name":"fd1"}`))
		case "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/frontDoors/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unreachable := fmt.Sprintf("http://%s", l.Addr().String())
	_ = l.Close()

	for _, tc := range []struct {
		name       string
		url        string
		provider   credentials.Provider
		resourceId string
		body       string
		status     int
		hasErr     bool
	}{
		{
			name:       "ok",
			url:        server.URL,
			provider:   credentials.Static("token"),
			resourceId: resourceId,
			body:       `{"name":"fd1"}`,
		},
		{
			name:       "trailing slash base url",
			url:        server.URL + "/",
			provider:   credentials.Static("token"),
			resourceId: resourceId,
			body:       `{"name":"fd1"}`,
		},
		{
			name:       "not found",
			url:        server.URL,
			provider:   credentials.Static("token"),
			resourceId: "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/frontDoors/missing",
			status:     http.StatusNotFound,
			hasErr:     true,
		},
		{
			name:       "credential failure",
			url:        server.URL,
			provider:   failingProvider{},
			resourceId: resourceId,
			hasErr:     true,
		},
		{
			name:       "unreachable",
			url:        unreachable,
			provider:   credentials.None{},
			resourceId: resourceId,
			hasErr:     true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body, err := newClient(tc.url, tc.provider).Get(context.Background(), tc.resourceId, "2019-05-01")

			if tc.hasErr {
				var requestFailed *RequestFailedError
				require.True(t, errors.As(err, &requestFailed))
				assert.Equal(t, tc.resourceId, requestFailed.ResourceId)
				assert.Equal(t, tc.status, requestFailed.StatusCode)
				assert.Empty(t, body)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.body, body)
			}
		})
	}
}

func TestGetBodySize(t *testing.T) {
	body := `{"name":"fd1","properties":{"enabledState":"Enabled"}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	for _, tc := range []struct {
		name        string
		maxBodySize int64
		hasErr      bool
	}{
		{name: "under limit", maxBodySize: int64(len(body)) + 1},
		{name: "at limit", maxBodySize: int64(len(body))},
		{name: "over limit", maxBodySize: 20, hasErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(server.URL, credentials.None{})
			client.config.MaxBodySize = tc.maxBodySize

			res, err := client.Get(context.Background(), resourceId, "2019-05-01")
			if tc.hasErr {
				var requestFailed *RequestFailedError
				require.True(t, errors.As(err, &requestFailed))
				assert.ErrorIs(t, err, ErrBodyTooLarge)
				assert.Equal(t, http.StatusOK, requestFailed.StatusCode)
				assert.Empty(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, body, res)
		})
	}
}

func TestResolveApiVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub1/providers/Microsoft.Network", r.URL.Path)
		assert.Equal(t, "2021-04-01", r.URL.Query().Get("api-version"))

		_, _ = w.Write([]byte(`{
			"namespace": "Microsoft.Network",
			"resourceTypes": [
				{"resourceType": "frontDoors", "apiVersions": ["2019-04-01", "2021-06-01", "2022-01-01-preview", "2020-05-01"]},
				{"resourceType": "frontDoors/frontendEndpoints", "apiVersions": ["2020-01-01-preview", "2020-06-01-preview"]},
				{"resourceType": "dnsZones", "apiVersions": []}
			]
		}`))
	}))
	defer server.Close()

	client := newClient(server.URL, credentials.None{})

	for _, tc := range []struct {
		name       string
		resourceId string
		version    string
		hasErr     bool
	}{
		{
			name:       "newest stable version",
			resourceId: resourceId,
			version:    "2021-06-01",
		},
		{
			name:       "resource type is case insensitive",
			resourceId: "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/FRONTDOORS/fd1",
			version:    "2021-06-01",
		},
		{
			name:       "nested type with only previews",
			resourceId: resourceId + "/frontendEndpoints/fe1",
			version:    "2020-06-01-preview",
		},
		{
			name:       "no versions",
			resourceId: "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/dnsZones/z",
			hasErr:     true,
		},
		{
			name:       "unknown type",
			resourceId: "/subscriptions/sub1/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/v",
			hasErr:     true,
		},
		{
			name:       "unparsable id",
			resourceId: "not-a-resource-id",
			hasErr:     true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, err := client.ResolveApiVersion(context.Background(), tc.resourceId)
			if tc.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.version, version)
			}
		})
	}
}

func TestParseResourceId(t *testing.T) {
	for _, tc := range []struct {
		resourceId   string
		subscription string
		namespace    string
		typ          string
		hasErr       bool
	}{
		{
			resourceId:   resourceId,
			subscription: "sub1",
			namespace:    "Microsoft.Network",
			typ:          "frontDoors",
		},
		{
			resourceId:   "/subscriptions/s/resourceGroups/g/providers/Microsoft.Sql/servers/a/databases/b",
			subscription: "s",
			namespace:    "Microsoft.Sql",
			typ:          "servers/databases",
		},
		{
			resourceId:   "/subscriptions/s/resourceGroups/g/providers/Microsoft.Compute/virtualMachines/vm/providers/Microsoft.Insights/diagnosticSettings/d",
			subscription: "s",
			namespace:    "Microsoft.Insights",
			typ:          "diagnosticSettings",
		},
		{
			resourceId: "/subscriptions/s/resourceGroups/g",
			hasErr:     true,
		},
		{
			resourceId: "/tenants/t/providers/Microsoft.Network/frontDoors/x",
			hasErr:     true,
		},
	} {
		t.Run(tc.resourceId, func(t *testing.T) {
			subscription, namespace, typ, err := ParseResourceId(tc.resourceId)
			if tc.hasErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.subscription, subscription)
			assert.Equal(t, tc.namespace, namespace)
			assert.Equal(t, tc.typ, typ)
		})
	}
}
