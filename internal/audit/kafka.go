package audit

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "mentora/pkg/domain-errors"
)

// KafkaSink streams the audit trail to a Kafka topic for downstream
// compliance consumers. Events are keyed by correlation id so one saga's
// trail stays in partition order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "kafka client init failed")
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode audit event")
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.CorrelationID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "produce audit event")
	}
	return nil
}

// ListByCorrelation is not supported on the streaming sink; reads go through
// the memory or database store.
func (s *KafkaSink) ListByCorrelation(context.Context, string) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeBadRequest, "kafka sink is write-only")
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
