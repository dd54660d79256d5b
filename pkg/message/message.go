package message

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	Change Type = "change"
	Error  Type = "error"
)

func (t Type) String() string {
	return string(t)
}

// Queue is the default destination name of the channel.
func (t Type) Queue() string {
	switch t {
	case Change:
		return "resource-updated"
	case Error:
		return "resource-update-error"
	default:
		return string(t)
	}
}

// Message is the payload published on the change and error channels.
type Message struct {
	ResourceId string `json:"resourceId"`
}

func (m *Message) String() string {
	return fmt.Sprintf("Message(resourceId=%s)", m.ResourceId)
}

func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
