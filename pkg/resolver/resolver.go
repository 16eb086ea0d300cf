// Package resolver implements the resolution engine: given one scraped record,
// decide which master entity it refers to (or that none does). The flow is
// retrieve (cheap blocking filter) → score (weighted field similarities) →
// policy (threshold bands) → persist (idempotent upserts + audit).
package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/scoring"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Service resolves external records against the master registry
type Service struct {
	log     ectologger.Logger
	masters MasterStore
	links   LinkStore
	aliases AliasStore
	reviews ReviewQueue
	audits  AuditLog
	scorer  *scoring.Scorer
}

// NewService creates a new resolution service
func NewService(
	log ectologger.Logger,
	masters MasterStore,
	links LinkStore,
	aliases AliasStore,
	reviews ReviewQueue,
	audits AuditLog,
) *Service {
	return &Service{
		log:     log,
		masters: masters,
		links:   links,
		aliases: aliases,
		reviews: reviews,
		audits:  audits,
		scorer:  scoring.NewScorer(),
	}
}

// normalizedInput is the comparable form of a ResolveInput. Fields normalize
// to "" when the raw value carries no signal.
type normalizedInput struct {
	name    string
	address string
	city    string
	zip     string
	phone   string
}

func normalizeInput(input *models.ResolveInput) normalizedInput {
	return normalizedInput{
		name:    normalizers.Name(input.Name),
		address: normalizers.Address(input.Address),
		city:    strings.ToUpper(strings.TrimSpace(input.City)),
		zip:     normalizers.Zip(input.Zip),
		phone:   normalizers.Phone(input.Phone),
	}
}

// Resolve decides which master entity an external record refers to. Thresholds
// and weights come from the cfg value passed per call, never from shared state,
// so the same input and config always produce the same decision.
//
// Read failures (link lookup, candidate retrieval) propagate to the caller.
// Side-effect writes are best-effort: failures are logged and the computed
// result is still returned.
func (s *Service) Resolve(ctx context.Context, input *models.ResolveInput, cfg models.MatchConfig) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Resolve")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"source_system":     input.SourceSystem,
		"source_identifier": input.SourceIdentifier,
	})

	norm := normalizeInput(input)
	if norm.name == "" {
		// Nothing to compare against. Short-circuit before touching the store.
		return &models.ResolveResult{
			Matched:     false,
			MatchMethod: models.MatchMethodNoCandidates,
		}, nil
	}

	// Replaying a record that was already linked returns the stored decision,
	// regardless of how the registry has changed since.
	if input.SourceIdentifier != "" {
		link, err := s.links.GetActive(ctx, input.SourceSystem, input.SourceIdentifier)
		if err != nil {
			return nil, err
		}
		if link != nil {
			return &models.ResolveResult{
				Matched:     true,
				MasterID:    &link.MasterID,
				Score:       link.MatchScore,
				MatchMethod: models.MatchMethodExistingLink,
			}, nil
		}
	}

	candidates, err := s.masters.FindCandidates(ctx, norm.name, norm.city, norm.zip, cfg.PrefixLength, cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &models.ResolveResult{
			Matched:     false,
			MatchMethod: models.MatchMethodNoCandidates,
		}, nil
	}

	best, bestScore, bestDetails := s.selectBest(norm, candidates, cfg)
	if best == nil || bestScore < cfg.RejectThreshold {
		result := &models.ResolveResult{
			Matched:     false,
			Score:       bestScore,
			MatchMethod: models.MatchMethodLowConfidence,
		}
		if best != nil {
			result.MatchDetails = bestDetails
			s.appendAudit(ctx, &models.AuditEntry{
				SourceSystem:     input.SourceSystem,
				SourceIdentifier: input.SourceIdentifier,
				SourceName:       input.Name,
				Action:           models.AuditActionRejected,
				MatchScore:       bestScore,
				MatchMethod:      models.MatchMethodLowConfidence,
				Details:          encodeDetails(bestDetails),
			})
		}
		return result, nil
	}

	log = log.WithFields(map[string]any{"master_id": best.ID, "score": bestScore})

	if bestScore >= cfg.AutoMatchThreshold {
		s.persistAutoMatch(ctx, input, norm, best, bestScore, bestDetails)
		log.Info("Auto-matched record to master entity")
		return &models.ResolveResult{
			Matched:      true,
			MasterID:     &best.ID,
			Score:        bestScore,
			MatchMethod:  models.MatchMethodAutoMatch,
			MatchDetails: bestDetails,
		}, nil
	}

	if bestScore >= cfg.ReviewThreshold {
		if input.SourceIdentifier != "" {
			if err := s.reviews.Queue(ctx, &models.PendingMatch{
				SourceSystem:      input.SourceSystem,
				SourceIdentifier:  input.SourceIdentifier,
				SourceName:        input.Name,
				CandidateMasterID: best.ID,
				MatchScore:        bestScore,
				MatchDetails:      encodeDetails(bestDetails),
			}); err != nil {
				log.WithError(err).Warn("Failed to queue pending match")
			}
		}
		log.Info("Queued record for review")
		return &models.ResolveResult{
			Matched:      false,
			MasterID:     &best.ID,
			Score:        bestScore,
			MatchMethod:  models.MatchMethodNeedsReview,
			MatchDetails: bestDetails,
			NeedsReview:  true,
		}, nil
	}

	s.appendAudit(ctx, &models.AuditEntry{
		SourceSystem:     input.SourceSystem,
		SourceIdentifier: input.SourceIdentifier,
		SourceName:       input.Name,
		Action:           models.AuditActionRejected,
		MatchScore:       bestScore,
		MatchMethod:      models.MatchMethodLowConfidence,
		Details:          encodeDetails(bestDetails),
	})
	return &models.ResolveResult{
		Matched:      false,
		Score:        bestScore,
		MatchMethod:  models.MatchMethodLowConfidence,
		MatchDetails: bestDetails,
	}, nil
}

// selectBest scores every candidate and returns the highest scorer
func (s *Service) selectBest(norm normalizedInput, candidates []models.MasterEntity, cfg models.MatchConfig) (*models.MasterEntity, float64, []models.MatchDetail) {
	type scored struct {
		entity  *models.MasterEntity
		score   float64
		details []models.MatchDetail
	}

	results := make([]scored, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		score, details := s.scoreCandidate(norm, c, cfg)
		results = append(results, scored{entity: c, score: score, details: details})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) == 0 {
		return nil, 0, nil
	}
	top := results[0]
	return top.entity, top.score, top.details
}

// scoreCandidate computes the weighted composite similarity between the input
// and one candidate. A field contributes only when present on both sides; the
// composite is the raw weighted sum, so missing fields lower the ceiling
// rather than being scored as zero.
func (s *Service) scoreCandidate(norm normalizedInput, c *models.MasterEntity, cfg models.MatchConfig) (float64, []models.MatchDetail) {
	var composite float64
	details := make([]models.MatchDetail, 0, 5)

	add := func(criterion, source, matched string, score, weight float64) {
		composite += score * weight
		details = append(details, models.MatchDetail{
			Criterion:    criterion,
			SourceValue:  source,
			MatchedValue: matched,
			Score:        score,
			Weight:       weight,
		})
	}

	if c.CanonicalName != "" {
		add("name", norm.name, c.CanonicalName, s.scorer.NameSimilarity(norm.name, c.CanonicalName), cfg.NameWeight)
	}
	if norm.address != "" && c.NormalizedAddress != "" {
		add("address", norm.address, c.NormalizedAddress, s.scorer.JaroWinkler(norm.address, c.NormalizedAddress), cfg.AddressWeight)
	}
	if norm.city != "" && c.City != "" {
		add("city", norm.city, c.City, s.scorer.ExactMatch(norm.city, c.City, false), cfg.CityWeight)
	}
	if norm.zip != "" && c.Zip5 != "" {
		add("zip5", norm.zip, c.Zip5, s.scorer.ExactMatch(norm.zip, c.Zip5, true), cfg.ZipWeight)
	}
	if norm.phone != "" && c.NormalizedPhone != "" {
		add("phone", norm.phone, c.NormalizedPhone, s.scorer.ExactMatch(norm.phone, c.NormalizedPhone, true), cfg.PhoneWeight)
	}

	return composite, details
}

// persistAutoMatch writes the side effects of an automatic match: the active
// source link, a name alias on the master, a freshness touch, and the audit
// row. All best-effort.
func (s *Service) persistAutoMatch(ctx context.Context, input *models.ResolveInput, norm normalizedInput, master *models.MasterEntity, score float64, details []models.MatchDetail) {
	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"source_system":     input.SourceSystem,
		"source_identifier": input.SourceIdentifier,
		"master_id":         master.ID,
	})

	if input.SourceIdentifier != "" {
		if _, err := s.links.Upsert(ctx, &models.SourceLink{
			SourceSystem:     input.SourceSystem,
			SourceIdentifier: input.SourceIdentifier,
			SourceName:       input.Name,
			MasterID:         master.ID,
			MatchMethod:      models.MatchMethodAutoMatch,
			MatchScore:       score,
			MatchDetails:     encodeDetails(details),
		}); err != nil {
			log.WithError(err).Warn("Failed to upsert source link")
		}
	}

	// A matched name that differs from the canonical one is worth remembering;
	// it widens candidate retrieval for future records.
	if norm.name != master.CanonicalName {
		if err := s.aliases.Add(ctx, &models.Alias{
			MasterID:        master.ID,
			AliasDisplay:    input.Name,
			AliasNormalized: norm.name,
			AliasType:       models.AliasTypeName,
			Source:          input.SourceSystem,
			Confidence:      score,
		}); err != nil {
			log.WithError(err).Warn("Failed to add alias")
		}
	}

	if err := s.masters.TouchLastVerified(ctx, master.ID); err != nil {
		log.WithError(err).Warn("Failed to touch last_verified")
	}

	masterID := master.ID
	s.appendAudit(ctx, &models.AuditEntry{
		MasterID:         &masterID,
		SourceSystem:     input.SourceSystem,
		SourceIdentifier: input.SourceIdentifier,
		SourceName:       input.Name,
		Action:           models.AuditActionMatched,
		MatchScore:       score,
		MatchMethod:      models.MatchMethodAutoMatch,
		Details:          encodeDetails(details),
	})
}

func (s *Service) appendAudit(ctx context.Context, entry *models.AuditEntry) {
	if err := s.audits.Append(ctx, entry); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Failed to append audit entry")
	}
}

func encodeDetails(details []models.MatchDetail) string {
	if len(details) == 0 {
		return ""
	}
	return models.MatchDetails{
		Version:  models.MatchDetailsSchemaVersion,
		Criteria: details,
	}.Encode()
}
