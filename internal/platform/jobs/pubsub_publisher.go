package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/galleryprints/catalog-api/internal/services"
)

// PubSubRetagPublisher publishes AI retag batches to a Pub/Sub topic.
type PubSubRetagPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubRetagPublisher constructs a Pub/Sub backed retag job publisher.
func NewPubSubRetagPublisher(topic *pubsub.Topic) (*PubSubRetagPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub retag publisher: topic is required")
	}
	return &PubSubRetagPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishRetagJob enqueues one retag batch message on the configured topic.
func (p *PubSubRetagPublisher) PublishRetagJob(ctx context.Context, message services.RetagJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub retag publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal retag job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "jobId", message.JobID)
	setAttr(attrs, "model", message.Model)
	attrs["batch"] = strconv.Itoa(message.Batch)
	attrs["workCount"] = strconv.Itoa(len(message.WorkIDs))
	if key := strings.TrimSpace(message.IdempotencyKey); key != "" {
		attrs["idempotencyKey"] = key
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish retag job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
