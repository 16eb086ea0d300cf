// Package processor consumes provider records from Kafka and drives them
// through the resolution engine.
package processor

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Resolver decides which master entity a record refers to
type Resolver interface {
	Resolve(ctx context.Context, input *models.ResolveInput, cfg models.MatchConfig) (*models.ResolveResult, error)
	CreateMaster(ctx context.Context, req *models.CreateMasterEntityRequest) (*models.MasterEntity, error)
}

// Emitter publishes resolution outcomes
type Emitter interface {
	EmitResolved(ctx context.Context, input *models.ResolveInput, result *models.ResolveResult) error
	EmitMasterCreated(ctx context.Context, input *models.ResolveInput, entity *models.MasterEntity) error
}

// Config controls processing behavior
type Config struct {
	Match models.MatchConfig
	// CreateUnmatched registers a new master when nothing at or above the
	// reject threshold is found. Off, unmatched records are only emitted.
	CreateUnmatched bool
}

// Processor handles provider record messages
type Processor struct {
	cfg      Config
	resolver Resolver
	emitter  Emitter
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewProcessor creates a new record processor. The emitter may be nil when no
// downstream topic is configured.
func NewProcessor(cfg Config, resolver Resolver, emitter Emitter, logger ectologger.Logger) *Processor {
	return &Processor{
		cfg:      cfg,
		resolver: resolver,
		emitter:  emitter,
		validate: validator.New(),
		logger:   logger,
	}
}

// ProcessMessage resolves one provider record. A returned error means the
// message should be redelivered; malformed or invalid records return nil so
// the offset commits.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessMessage")
	defer span.End()

	record := msg.Record
	if record == nil {
		return nil
	}
	if record.SourceSystem == "" {
		record.SourceSystem = msg.GetSourceSystem()
	}
	if record.SourceIdentifier == "" {
		record.SourceIdentifier = msg.GetSourceIdentifier()
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"source_system":     record.SourceSystem,
		"source_identifier": record.SourceIdentifier,
	})

	input := record.ResolveInput()
	if err := p.validate.Struct(input); err != nil {
		// Retrying will not make the record valid.
		log.WithError(err).Warn("Dropping invalid provider record")
		return nil
	}

	result, err := p.resolver.Resolve(ctx, input, p.cfg.Match)
	if err != nil {
		return err
	}

	if p.shouldCreate(result) {
		entity, err := p.resolver.CreateMaster(ctx, record.CreateRequest())
		if err != nil {
			// A rejected registration (e.g. a name that normalizes to empty)
			// will never succeed on redelivery.
			if httperror.GetStatusCode(err) == http.StatusBadRequest {
				log.WithError(err).Warn("Dropping record that cannot seed a master")
				return nil
			}
			return err
		}
		log.WithFields(map[string]any{"master_id": entity.ID}).Info("Registered new master entity")
		p.emitCreated(ctx, input, entity)
		return nil
	}

	p.emitResolved(ctx, input, result)
	return nil
}

// shouldCreate reports whether the record found nothing at or above the reject
// threshold and should seed a new master
func (p *Processor) shouldCreate(result *models.ResolveResult) bool {
	if !p.cfg.CreateUnmatched || result.Matched || result.NeedsReview {
		return false
	}
	switch result.MatchMethod {
	case models.MatchMethodNoCandidates:
		return true
	case models.MatchMethodLowConfidence:
		return result.Score < p.cfg.Match.RejectThreshold
	}
	return false
}

// Emission is best-effort: a publish failure must not trigger a redelivery
// that would re-run side effects already persisted.
func (p *Processor) emitResolved(ctx context.Context, input *models.ResolveInput, result *models.ResolveResult) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitResolved(ctx, input, result); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to emit resolution event")
	}
}

func (p *Processor) emitCreated(ctx context.Context, input *models.ResolveInput, entity *models.MasterEntity) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitMasterCreated(ctx, input, entity); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to emit master created event")
	}
}
