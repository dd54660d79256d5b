package monitors

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/resmon/internal/app/monitors"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/sqlite"
	httpApi "github.com/resonatehq/resmon/internal/app/subsystems/api/http"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/service"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) string {
	m := metrics.New(prometheus.NewRegistry())

	s, err := sqlite.New(&sqlite.Config{Path: ":memory:", TxTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, s.Start(nil))
	t.Cleanup(func() { _ = s.Stop() })

	d := dispatch.New(&dispatch.Config{Partitions: 2, Size: 10}, m)
	require.NoError(t, d.Start(nil))
	t.Cleanup(func() { _ = d.Stop() })

	svc := service.New(s, d, monitors.New(s, nil, nil, nil, m), nil, "http")

	h, err := httpApi.New(svc, m, &httpApi.Config{Addr: ":0", Timeout: time.Second})
	require.NoError(t, err)

	server := httptest.NewServer(h.Handler())
	t.Cleanup(server.Close)

	return server.URL
}

func run(server string, args ...string) (string, error) {
	cmd := NewCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--server", server))

	err := cmd.Execute()
	return out.String(), err
}

func TestMonitorsCmd(t *testing.T) {
	server := setup(t)

	for _, tc := range []struct {
		name     string
		args     []string
		contains []string
		err      string
	}{
		{
			name:     "Create",
			args:     []string{"create", "/subscriptions/s/fd", "--api-version", "2019-05-01", "--check-frequency", "1h"},
			contains: []string{"Monitoring |subscriptions|s|fd"},
		},
		{
			name: "CreateInvalid",
			args: []string{"create", "relative", "--api-version", "2019-05-01"},
			err:  "400",
		},
		{
			name:     "Get",
			args:     []string{"get", "|subscriptions|s|fd"},
			contains: []string{"Resource Id:", "/subscriptions/s/fd", "1h0m0s"},
		},
		{
			name:     "GetJson",
			args:     []string{"get", "|subscriptions|s|fd", "-o", "json"},
			contains: []string{`"apiVersion":"2019-05-01"`},
		},
		{
			name:     "List",
			args:     []string{"list"},
			contains: []string{"KEY", "|subscriptions|s|fd"},
		},
		{
			name:     "Check",
			args:     []string{"check", "|subscriptions|s|fd"},
			contains: []string{"Check requested"},
		},
		{
			name:     "Delete",
			args:     []string{"delete", "|subscriptions|s|fd"},
			contains: []string{"Deleted"},
		},
		{
			name: "GetDeleted",
			args: []string{"get", "|subscriptions|s|fd"},
			err:  "404",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, err := run(server, tc.args...)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			for _, s := range tc.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestListAll(t *testing.T) {
	server := setup(t)

	for _, id := range []string{"/a", "/b", "/c"} {
		_, err := run(server, "create", id, "--api-version", "v1")
		require.NoError(t, err)
	}

	out, err := run(server, "list", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "next cursor: |b")
	assert.NotContains(t, out, "|c")

	out, err = run(server, "list", "--limit", "2", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "|c")
	assert.NotContains(t, out, "next cursor")
}
