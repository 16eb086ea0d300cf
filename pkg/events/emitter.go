// Package events handles event emission for resolution decisions
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Event types published to the resolution topic
const (
	EventRecordMatched   = "record.matched"
	EventRecordCreated   = "record.created"
	EventRecordReview    = "record.review"
	EventRecordUnmatched = "record.unmatched"
)

// Emitter publishes resolution outcomes for downstream consumers
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitResolved publishes the outcome of one resolution call
func (e *Emitter) EmitResolved(ctx context.Context, input *models.ResolveInput, result *models.ResolveResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitResolved")
	defer span.End()

	eventType := EventRecordUnmatched
	switch {
	case result.Matched:
		eventType = EventRecordMatched
	case result.NeedsReview:
		eventType = EventRecordReview
	}

	event := &kafka.ResolutionEvent{
		EventType:        eventType,
		SourceSystem:     input.SourceSystem,
		SourceIdentifier: input.SourceIdentifier,
		SourceName:       input.Name,
		MasterID:         result.MasterID,
		Score:            result.Score,
		MatchMethod:      result.MatchMethod,
		MatchDetails:     result.MatchDetails,
		NeedsReview:      result.NeedsReview,
		SchemaVersion:    SchemaVersion,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit resolution event")
		return err
	}

	return nil
}

// EmitMasterCreated publishes the registration of a new master entity
func (e *Emitter) EmitMasterCreated(ctx context.Context, input *models.ResolveInput, entity *models.MasterEntity) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMasterCreated")
	defer span.End()

	masterID := entity.ID
	event := &kafka.ResolutionEvent{
		EventType:        EventRecordCreated,
		SourceSystem:     input.SourceSystem,
		SourceIdentifier: input.SourceIdentifier,
		SourceName:       input.Name,
		MasterID:         &masterID,
		Score:            1.0,
		MatchMethod:      models.AuditActionCreated,
		SchemaVersion:    SchemaVersion,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit master created event")
		return err
	}

	return nil
}
