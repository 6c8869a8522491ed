// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

// messageWriter is the slice of kafka-go's Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits a decision event for every finished evaluation so
// downstream consumers (servicing, reporting) can react without polling
// the decision store.
type Publisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log logger.Logger) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafkago.RequireAll,
		},
		topic:  topic,
		logger: log.WithFields(map[string]interface{}{"component": "event-publisher"}),
	}
}

// PublishDecision emits the trimmed decision event, keyed by request id so
// a partition always sees one request's events in order.
func (p *Publisher) PublishDecision(ctx context.Context, outcome *models.LoanOutcome) error {
	event := models.DecisionEvent{
		RequestID: outcome.RequestID,
		Decision:  outcome.Decision.Decision,
		RiskScore: outcome.Decision.RiskScore,
		Timestamp: outcome.Timestamp,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(outcome.RequestID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.NewEventPublishFailedError(p.topic, err)
	}

	p.logger.Debug("Decision event published", map[string]interface{}{
		"requestId": outcome.RequestID,
		"decision":  string(outcome.Decision.Decision),
		"topic":     p.topic,
	})
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
