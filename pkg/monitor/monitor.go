package monitor

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DefaultCheckInterval is applied at admission when no check frequency
// is given.
const DefaultCheckInterval = 24 * time.Hour

// MinCheckInterval is the precision of the stored check interval.
const MinCheckInterval = time.Millisecond

var ErrInvalidConfig = errors.New("invalid monitor config")

// Config is the immutable part of a monitor, fixed by Initialize.
type Config struct {
	ResourceId    string        `json:"resourceId"`
	ApiVersion    string        `json:"apiVersion"`
	CheckInterval time.Duration `json:"checkInterval"`
}

func (c Config) Validate() error {
	if c.ResourceId == "" {
		return fmt.Errorf("%w: resource id must be provided", ErrInvalidConfig)
	}
	if c.ApiVersion == "" {
		return fmt.Errorf("%w: api version must be provided", ErrInvalidConfig)
	}
	if c.CheckInterval < MinCheckInterval {
		return fmt.Errorf("%w: check interval must be at least %s", ErrInvalidConfig, MinCheckInterval)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config(resourceId=%s, apiVersion=%s, checkInterval=%s)", c.ResourceId, c.ApiVersion, c.CheckInterval)
}

type Monitor struct {
	Key                   string        `json:"key"`
	ResourceId            string        `json:"resourceId"`
	ApiVersion            string        `json:"apiVersion"`
	CheckInterval         time.Duration `json:"checkInterval"`
	CurrentRepresentation *string       `json:"currentRepresentation,omitempty"`
	LastCheckedAt         *int64        `json:"lastCheckedAt,omitempty"`
	LastChangedAt         *int64        `json:"lastChangedAt,omitempty"`
	NextCheckAt           int64         `json:"nextCheckAt"`
	CreatedOn             int64         `json:"createdOn"`
}

func (m *Monitor) String() string {
	return fmt.Sprintf(
		"Monitor(key=%s, resourceId=%s, apiVersion=%s, checkInterval=%s, lastCheckedAt=%v, lastChangedAt=%v, nextCheckAt=%d)",
		m.Key,
		m.ResourceId,
		m.ApiVersion,
		m.CheckInterval,
		fmtMillis(m.LastCheckedAt),
		fmtMillis(m.LastChangedAt),
		m.NextCheckAt,
	)
}

func (m *Monitor) Config() Config {
	return Config{
		ResourceId:    m.ResourceId,
		ApiVersion:    m.ApiVersion,
		CheckInterval: m.CheckInterval,
	}
}

func fmtMillis(v *int64) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", *v)
}

var disallowed = regexp.MustCompile(`[\\#%+/?\x00-\x1F\x7F-\x9F]`)

// Key normalizes a resource id into a store key by replacing every
// character that is not allowed in a key with a single "|".
func Key(resourceId string) string {
	return disallowed.ReplaceAllString(resourceId, "|")
}
