package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	Partition string `json:"partition"`
	Data      []byte `json:"data"`
}

// Routing keys
const (
	EventDataChanged = "change.data_changed"
)
