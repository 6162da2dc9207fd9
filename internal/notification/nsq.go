package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

type publisher interface {
	Publish(topic string, body []byte) error
}

// NSQNotifier hands messages to an SMS worker through an NSQ topic.
type NSQNotifier struct {
	producer publisher
	topic    string
	stop     func()
}

// NewNSQNotifier connects a producer to nsqd at address and verifies it with a ping.
func NewNSQNotifier(address, topic string) (*NSQNotifier, error) {
	producer, err := nsq.NewProducer(address, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("ping nsqd: %w", err)
	}
	return &NSQNotifier{producer: producer, topic: topic, stop: producer.Stop}, nil
}

// Send publishes message as JSON. Publish is synchronous: a nil error means nsqd accepted it.
func (n *NSQNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.producer.Publish(n.topic, body); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close stops the underlying producer.
func (n *NSQNotifier) Close() {
	if n.stop != nil {
		n.stop()
	}
}
