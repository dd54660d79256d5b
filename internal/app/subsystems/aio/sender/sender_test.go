package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/pkg/message"
)

type mockPlugin struct {
	name     string
	full     bool
	respond  bool
	success  bool
	err      error
	received []*aio.Message
}

func (p *mockPlugin) String() string           { return "sender:" + p.name }
func (p *mockPlugin) Type() string             { return p.name }
func (p *mockPlugin) Start(chan<- error) error { return nil }
func (p *mockPlugin) Stop() error              { return nil }

func (p *mockPlugin) Enqueue(msg *aio.Message) bool {
	if p.full {
		return false
	}
	p.received = append(p.received, msg)
	if p.respond {
		msg.Done(p.success, p.err)
	}
	return true
}

func TestNew(t *testing.T) {
	metrics := metrics.New(prometheus.NewRegistry())
	logger := &mockPlugin{name: "logger"}

	_, err := New(&Config{
		Change: Route{Plugin: "logger"},
		Error:  Route{Plugin: "sqs"},
	}, metrics, []aio.Plugin{logger})
	assert.ErrorContains(t, err, `plugin "sqs" which is not enabled`)

	s, err := New(&Config{
		Change: Route{Plugin: "logger", Target: "a"},
		Error:  Route{Plugin: "logger", Target: "b"},
	}, metrics, []aio.Plugin{logger})
	require.NoError(t, err)
	assert.Equal(t, "sender(change=logger:a, error=logger:b)", s.String())

	s, err = New(&Config{
		Change: Route{Plugin: "logger"},
		Error:  Route{Plugin: "logger"},
	}, metrics, []aio.Plugin{logger})
	require.NoError(t, err)
	assert.Equal(t, "sender(change=logger:resource-updated, error=logger:resource-update-error)", s.String())
}

func TestSend(t *testing.T) {
	metrics := metrics.New(prometheus.NewRegistry())

	for _, tc := range []struct {
		name    string
		plugin  *mockPlugin
		msgType message.Type
		target  string
		hasErr  bool
	}{
		{
			name:    "change delivered",
			plugin:  &mockPlugin{name: "p", respond: true, success: true},
			msgType: message.Change,
			target:  "changes",
		},
		{
			name:    "error delivered",
			plugin:  &mockPlugin{name: "p", respond: true, success: true},
			msgType: message.Error,
			target:  "errors",
		},
		{
			name:    "rejected",
			plugin:  &mockPlugin{name: "p", respond: true, success: false},
			msgType: message.Change,
			target:  "changes",
			hasErr:  true,
		},
		{
			name:    "plugin error",
			plugin:  &mockPlugin{name: "p", respond: true, err: errors.New("boom")},
			msgType: message.Change,
			target:  "changes",
			hasErr:  true,
		},
		{
			name:    "queue full",
			plugin:  &mockPlugin{name: "p", full: true},
			msgType: message.Error,
			target:  "errors",
			hasErr:  true,
		},
		{
			name:    "timeout",
			plugin:  &mockPlugin{name: "p"},
			msgType: message.Change,
			target:  "changes",
			hasErr:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(&Config{
				Timeout: 50 * time.Millisecond,
				Change:  Route{Plugin: "p", Target: "changes"},
				Error:   Route{Plugin: "p", Target: "errors"},
			}, metrics, []aio.Plugin{tc.plugin})
			require.NoError(t, err)

			err = s.Send(context.Background(), tc.msgType, &message.Message{ResourceId: "/r"})
			if tc.hasErr {
				var deliveryErr *aio.DeliveryError
				require.True(t, errors.As(err, &deliveryErr))
				assert.Equal(t, tc.msgType, deliveryErr.Type)
				assert.Equal(t, "p", deliveryErr.Plugin)
			} else {
				assert.NoError(t, err)
			}

			if !tc.plugin.full {
				require.Len(t, tc.plugin.received, 1)
				assert.Equal(t, tc.msgType, tc.plugin.received[0].Type)
				assert.Equal(t, tc.target, tc.plugin.received[0].Target)
				assert.JSONEq(t, `{"resourceId":"/r"}`, string(tc.plugin.received[0].Body))
			}
		})
	}
}
