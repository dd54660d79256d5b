package aio

import (
	"fmt"

	"github.com/resonatehq/resmon/pkg/message"
)

type Message struct {
	Type   message.Type
	Target string
	Body   []byte
	Done   func(bool, error)
}

type Plugin interface {
	String() string
	Type() string
	Start(chan<- error) error
	Stop() error
	Enqueue(*Message) bool
}

// DeliveryError is returned when an event could not be handed to, or
// was rejected by, the plugin its channel is routed to.
type DeliveryError struct {
	Type   message.Type
	Plugin string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s event via %s: %v", e.Type, e.Plugin, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
