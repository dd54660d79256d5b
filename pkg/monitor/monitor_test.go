package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	for _, tc := range []struct {
		name       string
		resourceId string
		expected   string
	}{
		{
			name:       "arm resource id",
			resourceId: "/subscriptions/abc/resourceGroups/rg/providers/Microsoft.Network/frontDoors/fd",
			expected:   "|subscriptions|abc|resourceGroups|rg|providers|Microsoft.Network|frontDoors|fd",
		},
		{
			name:       "no disallowed characters",
			resourceId: "plain-id_1.2",
			expected:   "plain-id_1.2",
		},
		{
			name:       "every disallowed printable character",
			resourceId: `a\b#c%d+e/f?g`,
			expected:   "a|b|c|d|e|f|g",
		},
		{
			name:       "control characters",
			resourceId: "a\x00b\x1fc\x7fd\u0085e\u009f",
			expected:   "a|b|c|d|e|",
		},
		{
			name:       "characters above the control range are kept",
			resourceId: "a b",
			expected:   "a b",
		},
		{
			name:       "empty",
			resourceId: "",
			expected:   "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Key(tc.resourceId))
			assert.Equal(t, Key(tc.resourceId), Key(tc.resourceId))
		})
	}
}

func TestKeyCollisions(t *testing.T) {
	// ids that differ only in disallowed characters share a key
	assert.Equal(t, Key("/a/b"), Key("#a?b"))

	// ids without disallowed characters never collide
	assert.NotEqual(t, Key("a.b"), Key("a-b"))
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		config Config
		hasErr bool
	}{
		{
			name:   "valid",
			config: Config{ResourceId: "/r", ApiVersion: "2020-01-01", CheckInterval: time.Minute},
		},
		{
			name:   "missing resource id",
			config: Config{ApiVersion: "2020-01-01", CheckInterval: time.Minute},
			hasErr: true,
		},
		{
			name:   "missing api version",
			config: Config{ResourceId: "/r", CheckInterval: time.Minute},
			hasErr: true,
		},
		{
			name:   "zero interval",
			config: Config{ResourceId: "/r", ApiVersion: "2020-01-01"},
			hasErr: true,
		},
		{
			name:   "negative interval",
			config: Config{ResourceId: "/r", ApiVersion: "2020-01-01", CheckInterval: -time.Second},
			hasErr: true,
		},
		{
			name:   "sub millisecond interval",
			config: Config{ResourceId: "/r", ApiVersion: "2020-01-01", CheckInterval: 500 * time.Microsecond},
			hasErr: true,
		},
		{
			name:   "millisecond interval",
			config: Config{ResourceId: "/r", ApiVersion: "2020-01-01", CheckInterval: time.Millisecond},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.hasErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordMonitor(t *testing.T) {
	rep := `{"a":1}`
	checked := int64(20)
	changed := int64(10)

	record := &MonitorRecord{
		Key:                   "|r",
		ResourceId:            "/r",
		ApiVersion:            "v1",
		CheckInterval:         30_000,
		CurrentRepresentation: &rep,
		LastCheckedAt:         &checked,
		LastChangedAt:         &changed,
		NextCheckAt:           30_020,
		CreatedOn:             1,
	}

	m := record.Monitor()
	assert.Equal(t, 30*time.Second, m.CheckInterval)
	assert.Equal(t, Config{ResourceId: "/r", ApiVersion: "v1", CheckInterval: 30 * time.Second}, m.Config())
	assert.Equal(t, &rep, m.CurrentRepresentation)
	assert.Equal(t, int64(30_020), m.NextCheckAt)
}
