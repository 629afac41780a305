// Package kafka wraps a franz-go client for producing outbox messages.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "github.com/ak652231/TraceQ-sub001/pkg/platform/audit"
)

const (
	headerMessageID = "message_id"
	headerType      = "type"
)

// Producer writes outbox messages to one topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to brokers. Produces wait for all in-sync replicas and
// are idempotent, so a retried batch is not duplicated within a session.
func NewProducer(brokers []string, topic string, opts ...kgo.Opt) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Produce implements audit.Sink. Records are keyed so one aggregate always
// lands on one partition.
func (p *Producer) Produce(ctx context.Context, msgs []audit.Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(m.Key),
			Value: m.Payload,
			Headers: []kgo.RecordHeader{
				{Key: headerMessageID, Value: []byte(m.ID)},
				{Key: headerType, Value: []byte(m.Type)},
			},
			Timestamp: m.OccurredAt,
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Topic() string {
	return p.topic
}

func (p *Producer) Close() {
	p.client.Close()
}
