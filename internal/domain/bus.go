package domain

import "context"

// Event topics published and consumed by the pricing engine.
const (
	TopicOrderCompleted    = "orders.completed"
	TopicPricingCalculated = "pricing.calculated"
	TopicTrainingRequested = "training.requested"
)

// EventBus defines the interface for event-driven communication.
// Backed by Go channels (default profile) or NATS (production).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is a handle on an active topic subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel bus settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}
