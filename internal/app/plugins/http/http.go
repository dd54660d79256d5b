package http

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/resonatehq/resmon/internal/app/plugins/base"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Size        int               `flag:"size" desc:"submission buffered channel size" default:"100"`
	Workers     int               `flag:"workers" desc:"number of workers" default:"2"`
	Timeout     time.Duration     `flag:"timeout" desc:"http request timeout" default:"30s"`
	ConnTimeout time.Duration     `flag:"conn-timeout" desc:"http connection timeout" default:"10s"`
	Headers     map[string]string `flag:"headers" desc:"headers added to every webhook request"`
}

type Http struct {
	*base.Plugin
}

type processor struct {
	client  *http.Client
	headers map[string]string
}

func New(metrics *metrics.Metrics, config *Config) (*Http, error) {
	proc := &processor{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: config.ConnTimeout,
				}).DialContext,
			},
		},
		headers: config.Headers,
	}

	return &Http{
		Plugin: base.NewPlugin("http", &base.Config{Size: config.Size, Workers: config.Workers}, metrics, proc, nil),
	}, nil
}

// Process posts body to the webhook url given by target, any 2xx
// response is a successful delivery.
func (p *processor) Process(target string, body []byte) (bool, error) {
	req, err := http.NewRequest("POST", target, bytes.NewReader(body))
	if err != nil {
		return false, err
	}

	for k, v := range p.headers { // nosemgrep: range-over-map
		req.Header.Set(k, v)
	}

	// set non-overridable headers
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return false, fmt.Errorf("webhook responded with status %d", res.StatusCode)
	}

	return true, nil
}
