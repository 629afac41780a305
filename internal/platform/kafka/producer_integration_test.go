//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ak652231/TraceQ-sub001/internal/platform/kafka"
	audit "github.com/ak652231/TraceQ-sub001/pkg/platform/audit"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/audit/relay"
	"github.com/ak652231/TraceQ-sub001/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

// memoryOutbox is a minimal audit.Source.
type memoryOutbox struct {
	pending []audit.Message
}

func (m *memoryOutbox) FetchPending(_ context.Context, limit int) ([]audit.Message, error) {
	return m.pending[:min(limit, len(m.pending))], nil
}

func (m *memoryOutbox) MarkDelivered(_ context.Context, msgs []audit.Message, _ time.Time) error {
	m.pending = m.pending[len(msgs):]
	return nil
}

func (s *ProducerSuite) consume(topic string, want int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var records []*kgo.Record
	for len(records) < want {
		fetches := consumer.PollFetches(ctx)
		s.Require().Empty(fetches.Errors())
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *ProducerSuite) TestRelayProducesKeyedRecordsInOrder() {
	ctx := context.Background()
	topic := "report-events-" + uuid.NewString()
	producer, err := kafka.NewProducer(s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, 3, 1))
	// a second call finds the topic already there
	s.Require().NoError(producer.EnsureTopic(ctx, 3, 1))

	reportID := uuid.NewString()
	outbox := &memoryOutbox{}
	for i, kind := range []string{"sighting_submitted", "status_changed", "status_changed"} {
		outbox.pending = append(outbox.pending, audit.Message{
			ID:         reportID + ":" + string(rune('1'+i)),
			Key:        reportID,
			Type:       kind,
			Payload:    []byte(`{"revision":` + string(rune('1'+i)) + `}`),
			OccurredAt: time.Now(),
		})
	}

	n, err := relay.New(outbox, producer).Flush(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Empty(outbox.pending)

	records := s.consume(topic, 3)
	s.Require().Len(records, 3)
	for i, r := range records {
		s.Equal(reportID, string(r.Key))
		s.Equal(records[0].Partition, r.Partition)
		s.JSONEq(`{"revision":`+string(rune('1'+i))+`}`, string(r.Value))
	}
}
