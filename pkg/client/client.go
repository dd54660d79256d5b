package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resonatehq/resmon/pkg/monitor"
)

type Client interface {
	Setup(string) error
	SetBasicAuth(string, string)
	SetBearerToken(string)

	CreateMonitor(ctx context.Context, req *CreateMonitorRequest) error
	ReadMonitor(ctx context.Context, key string) (*monitor.Monitor, error)
	SearchMonitors(ctx context.Context, cursor string, limit int) (*SearchMonitorsResponse, error)
	CheckMonitor(ctx context.Context, key string) error
	DeleteMonitor(ctx context.Context, key string) error
}

type CreateMonitorRequest struct {
	ResourceId     string `json:"resourceId"`
	ApiVersion     string `json:"apiVersion,omitempty"`
	CheckFrequency string `json:"checkFrequency,omitempty"`
}

type SearchMonitorsResponse struct {
	Cursor   string             `json:"cursor"`
	Monitors []*monitor.Monitor `json:"monitors"`
}

// ResponseError is returned for any non 2xx response.
type ResponseError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Details    []struct {
		Message string `json:"message"`
	} `json:"details"`
}

func (e *ResponseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Details) > 0 && e.Details[0].Message != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Details[0].Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

// Client

type client struct {
	server   *url.URL
	http     *http.Client
	username string
	password string
	token    string
}

func New() Client {
	return &client{
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) Setup(server string) error {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", server)
	}

	c.server = u
	return nil
}

func (c *client) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

func (c *client) SetBearerToken(token string) {
	c.token = token
}

func (c *client) CreateMonitor(ctx context.Context, req *CreateMonitorRequest) error {
	return c.do(ctx, http.MethodPost, "/monitors", nil, req, nil)
}

func (c *client) ReadMonitor(ctx context.Context, key string) (*monitor.Monitor, error) {
	var m monitor.Monitor
	if err := c.do(ctx, http.MethodGet, "/monitors/"+key, nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *client) SearchMonitors(ctx context.Context, cursor string, limit int) (*SearchMonitorsResponse, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var res SearchMonitorsResponse
	if err := c.do(ctx, http.MethodGet, "/monitors", query, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) CheckMonitor(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, "/monitors/"+key+"/check", nil, nil, nil)
}

func (c *client) DeleteMonitor(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/monitors/"+key, nil, nil, nil)
}

func (c *client) do(ctx context.Context, method string, path string, query url.Values, in any, out any) error {
	if c.server == nil {
		return fmt.Errorf("client is not set up")
	}

	u := *c.server
	u.Path = u.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return responseError(res)
	}

	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func (c *client) authorize(req *http.Request) {
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "" || c.password != "":
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.password)))
	}
}

func responseError(res *http.Response) error {
	e := &ResponseError{StatusCode: res.StatusCode}

	var body struct {
		Error *ResponseError `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Error != nil {
		body.Error.StatusCode = res.StatusCode
		return body.Error
	}

	return e
}
