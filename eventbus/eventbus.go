// Package eventbus wraps the in-process event bus carrying domain events
// between the ingest gateway and the fanout engine. For now we use a golang
// channel implementation for the EventBus, but later when needed we could
// substitute it with an SQS or Kafka based EventBus.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
)

// TopicPostCreated carries one message per successfully ingested post.
// Delivery is at-least-once: a nacked message is redelivered, so consumers
// must be idempotent.
const TopicPostCreated = "post.created"

type Bus struct {
	channel *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		channel: gochannel.NewGoChannel(
			gochannel.Config{},
			watermill.NewStdLogger(false, false),
		),
	}
}

// PublishPostCreated publishes the event. Callers must only invoke this
// after the post row is durable (write-then-publish ordering).
func (b *Bus) PublishPostCreated(event *model.PostCreatedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return b.channel.Publish(TopicPostCreated, msg)
}

// SubscribePostCreated returns the subscriber channel for post-created
// events. The channel closes when ctx is cancelled.
func (b *Bus) SubscribePostCreated(ctx context.Context) (<-chan *message.Message, error) {
	return b.channel.Subscribe(ctx, TopicPostCreated)
}

// DecodePostCreated parses a bus message payload.
func DecodePostCreated(msg *message.Message) (*model.PostCreatedEvent, error) {
	event := &model.PostCreatedEvent{}
	if err := json.Unmarshal(msg.Payload, event); err != nil {
		return nil, errors.Wrap(err, "malformed post-created payload")
	}
	return event, nil
}

func (b *Bus) Close() error {
	return b.channel.Close()
}
