package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, file string, args ...string) (*Config, error) {
	cfg := &Config{}
	vip := viper.New()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, cfg.Bind(flags, vip))
	require.NoError(t, flags.Parse(args))

	path := filepath.Join(t.TempDir(), "resmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(file), 0o644))
	require.NoError(t, ReadInConfig(vip, path))

	return cfg, cfg.Parse(vip)
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t, "")
	require.NoError(t, err)

	assert.Equal(t, ":8001", cfg.API.Http.Addr)
	assert.Equal(t, 10*time.Second, cfg.API.Http.Timeout)
	assert.Empty(t, cfg.API.Http.Cors.AllowOrigins)
	assert.Equal(t, "HS256", cfg.API.Http.Auth.JWT.Algorithm)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "resmon.db", cfg.Store.Sqlite.Path)
	assert.Equal(t, "5432", cfg.Store.Postgres.Port)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 100, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ClaimTimeout)
	assert.Equal(t, 16, cfg.Dispatch.Partitions)
	assert.Equal(t, "https://management.azure.com", cfg.Fetcher.BaseUrl)
	assert.Equal(t, "none", cfg.Credentials.Provider)
	assert.Equal(t, []string{"https://management.azure.com/.default"}, cfg.Credentials.Scopes)
	assert.Equal(t, "json", cfg.Diff.Mode)
	assert.Equal(t, "logger", cfg.Events.Change.Plugin)
	assert.Equal(t, "logger", cfg.Events.Error.Plugin)
	assert.True(t, cfg.Plugins.Logger.Enabled)
	assert.False(t, cfg.Plugins.Http.Enabled)
	assert.False(t, cfg.Plugins.Sqs.Enabled)
	assert.False(t, cfg.Plugins.Pubsub.Enabled)
	assert.Equal(t, 100, cfg.Plugins.Logger.Config.Size)
	assert.Equal(t, "", cfg.Seed.File)
	assert.Equal(t, 500*time.Millisecond, cfg.Seed.Debounce)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFile(t *testing.T) {
	cfg, err := parse(t, `
api:
  http:
    addr: ":9000"
    cors:
      allowOrigins: ["http://a.example", "http://b.example"]
    auth:
      basic:
        user: pass
store:
  kind: postgres
  postgres:
    host: db
    query:
      sslmode: disable
scheduler:
  pollInterval: 5s
  claimTimeout: 1m
plugins:
  sqs:
    enable: true
    workers: 4
events:
  change:
    plugin: sqs
    target: https://sqs.us-east-1.amazonaws.com/123/changes
seed:
  file: monitors.yaml
metricsAddr: ":9100"
log:
  level: debug
`)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.API.Http.Addr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.API.Http.Cors.AllowOrigins)
	assert.Equal(t, map[string]string{"user": "pass"}, cfg.API.Http.Auth.Basic)
	assert.Equal(t, "postgres", cfg.Store.Kind)
	assert.Equal(t, "db", cfg.Store.Postgres.Host)
	assert.Equal(t, map[string]string{"sslmode": "disable"}, cfg.Store.Postgres.Query)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.ClaimTimeout)
	assert.True(t, cfg.Plugins.Sqs.Enabled)
	assert.Equal(t, 4, cfg.Plugins.Sqs.Config.Workers)
	assert.Equal(t, "sqs", cfg.Events.Change.Plugin)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/changes", cfg.Events.Change.Target)
	assert.Equal(t, "logger", cfg.Events.Error.Plugin)
	assert.Equal(t, "monitors.yaml", cfg.Seed.File)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFlagsOverrideFile(t *testing.T) {
	cfg, err := parse(t, "api:\n  http:\n    addr: \":9000\"\n",
		"--api-http-addr", ":9001",
		"--dispatch-partitions", "4",
		"--plugins-http-enable",
		"--plugins-http-headers", "x-token=abc",
	)
	require.NoError(t, err)

	assert.Equal(t, ":9001", cfg.API.Http.Addr)
	assert.Equal(t, 4, cfg.Dispatch.Partitions)
	assert.True(t, cfg.Plugins.Http.Enabled)
	assert.Equal(t, map[string]string{"x-token": "abc"}, cfg.Plugins.Http.Config.Headers)
}

func TestEnv(t *testing.T) {
	t.Setenv("RESMON_STORE_SQLITE_PATH", "/tmp/env.db")
	t.Setenv("RESMON_SCHEDULER_BATCHSIZE", "7")

	cfg, err := parse(t, "")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Store.Sqlite.Path)
	assert.Equal(t, 7, cfg.Scheduler.BatchSize)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		file string
		err  string
	}{
		{name: "Store", file: "store:\n  kind: mysql\n", err: `unsupported store "mysql"`},
		{name: "Diff", file: "diff:\n  mode: xml\n", err: "xml"},
		{name: "LogLevel", file: "log:\n  level: loud\n", err: "unrecognized level"},
		{name: "Partitions", file: "dispatch:\n  partitions: 0\n", err: "partitions"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.file)
			assert.ErrorContains(t, err, tc.err)
		})
	}
}

func TestKey(t *testing.T) {
	for _, tc := range []struct {
		flag     string
		expected string
	}{
		{"addr", "addr"},
		{"metrics-addr", "metricsAddr"},
		{"providers-api-version", "providersApiVersion"},
	} {
		t.Run(tc.flag, func(t *testing.T) {
			assert.Equal(t, tc.expected, key(tc.flag))
		})
	}
}
