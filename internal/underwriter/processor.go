// internal/underwriter/processor.go
package underwriter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

var tracer = otel.Tracer("loan-underwriter/internal/underwriter")

// Decider runs a full evaluation. Satisfied by *engine.Engine.
type Decider interface {
	Evaluate(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error)
}

// OutcomeStore is the persistence surface the processor needs.
type OutcomeStore interface {
	GetOutcome(ctx context.Context, requestID string) (*models.LoanOutcome, error)
	SaveOutcome(ctx context.Context, outcome *models.LoanOutcome) error
	AppendAudit(ctx context.Context, requestID, event, detail string) error
}

// OutcomeCache short-circuits replays of recently decided requests.
type OutcomeCache interface {
	Get(ctx context.Context, requestID string) *models.LoanOutcome
	Set(ctx context.Context, outcome *models.LoanOutcome)
}

// OutcomeIndexer mirrors outcomes into the search index.
type OutcomeIndexer interface {
	Index(ctx context.Context, outcome *models.LoanOutcome) error
}

// DecisionPublisher emits decision events to the event stream.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, outcome *models.LoanOutcome) error
}

// Notifier raises operator alerts.
type Notifier interface {
	NotifyDecision(ctx context.Context, outcome *models.LoanOutcome)
	NotifyFailure(ctx context.Context, requestID string, stdErr *errors.StandardError)
}

// Observer records end-to-end evaluation telemetry. Satisfied by
// *observability.Observability.
type Observer interface {
	RecordEvaluation(ctx context.Context, decision string)
	RecordEvaluationDuration(ctx context.Context, duration time.Duration, decision string)
}

// Processor is the composition layer shared by the HTTP and Zeebe
// transports: replay lookup, engine evaluation, then fan-out to the
// sinks. Every collaborator except the decider is optional; a nil sink
// is simply skipped, and a failing sink degrades durability but never
// blocks the decision.
type Processor struct {
	decider   Decider
	store     OutcomeStore
	cache     OutcomeCache
	indexer   OutcomeIndexer
	publisher DecisionPublisher
	notifier  Notifier
	observer  Observer
	logger    logger.Logger
}

// NewProcessor wires the processor. Pass nil for any sink that is not
// configured.
func NewProcessor(decider Decider, store OutcomeStore, cache OutcomeCache, indexer OutcomeIndexer, publisher DecisionPublisher, notifier Notifier, observer Observer, log logger.Logger) *Processor {
	return &Processor{
		decider:   decider,
		store:     store,
		cache:     cache,
		indexer:   indexer,
		publisher: publisher,
		notifier:  notifier,
		observer:  observer,
		logger:    log.WithFields(map[string]interface{}{"component": "processor"}),
	}
}

// Process evaluates a request, replay-safe: a request id that was already
// decided returns its original outcome without re-running the pipeline.
// A request submitted without an id gets a generated one, so replay
// lookups never key on the empty string.
func (p *Processor) Process(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "underwriter.process")
	defer span.End()

	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = uuid.New().String()
		p.logger.Debug("Assigned request id", map[string]interface{}{
			"requestId": req.RequestID,
		})
	}
	span.SetAttributes(attribute.String("request.id", req.RequestID))

	if p.cache != nil {
		if outcome := p.cache.Get(ctx, req.RequestID); outcome != nil {
			p.logger.Info("Returning cached outcome", map[string]interface{}{
				"requestId": req.RequestID,
			})
			return outcome, nil
		}
	}

	if p.store != nil {
		stored, err := p.store.GetOutcome(ctx, req.RequestID)
		if err != nil {
			// A broken replay lookup must not block a fresh evaluation.
			p.logger.Warn("Stored outcome lookup failed", map[string]interface{}{
				"requestId": req.RequestID,
				"error":     err.Error(),
			})
		} else if stored != nil {
			p.logger.Info("Returning stored outcome", map[string]interface{}{
				"requestId": req.RequestID,
			})
			if p.cache != nil {
				p.cache.Set(ctx, stored)
			}
			return stored, nil
		}
	}

	outcome, err := p.decider.Evaluate(ctx, req)
	if err != nil {
		stdErr := errors.FromError(err)
		span.RecordError(stdErr)
		if p.notifier != nil {
			p.notifier.NotifyFailure(ctx, req.RequestID, stdErr)
		}
		return nil, stdErr
	}
	span.SetAttributes(attribute.String("decision", string(outcome.Decision.Decision)))

	p.fanOut(ctx, outcome)

	// Replays short-circuit above; only fresh decisions count.
	if p.observer != nil {
		decision := string(outcome.Decision.Decision)
		p.observer.RecordEvaluation(ctx, decision)
		p.observer.RecordEvaluationDuration(ctx, time.Since(start), decision)
	}

	return outcome, nil
}

// fanOut pushes a fresh outcome to every configured sink.
func (p *Processor) fanOut(ctx context.Context, outcome *models.LoanOutcome) {
	if p.store != nil {
		if err := p.store.SaveOutcome(ctx, outcome); err != nil {
			// A concurrent evaluation of the same request id already stored
			// its outcome; the engine is deterministic, so nothing is lost.
			if errors.FromError(err).Code == errors.ErrCodeDuplicateRequest {
				p.logger.Info("Outcome already stored", map[string]interface{}{
					"requestId": outcome.RequestID,
				})
			} else {
				p.logger.Error("Failed to persist outcome", map[string]interface{}{
					"requestId": outcome.RequestID,
					"error":     err.Error(),
				})
			}
		} else if err := p.store.AppendAudit(ctx, outcome.RequestID, "decision_rendered", string(outcome.Decision.Decision)); err != nil {
			p.logger.Warn("Failed to append audit entry", map[string]interface{}{
				"requestId": outcome.RequestID,
				"error":     err.Error(),
			})
		}
	}

	if p.cache != nil {
		p.cache.Set(ctx, outcome)
	}

	if p.indexer != nil {
		if err := p.indexer.Index(ctx, outcome); err != nil {
			p.logger.Warn("Failed to index outcome", map[string]interface{}{
				"requestId": outcome.RequestID,
				"error":     err.Error(),
			})
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishDecision(ctx, outcome); err != nil {
			p.logger.Warn("Failed to publish decision event", map[string]interface{}{
				"requestId": outcome.RequestID,
				"error":     err.Error(),
			})
		}
	}

	if p.notifier != nil {
		p.notifier.NotifyDecision(ctx, outcome)
	}
}
