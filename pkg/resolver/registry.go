package resolver

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CreateMaster registers a new master entity from a record nothing in the
// registry matched. Normalized columns are derived here so callers only supply
// display values. When the request carries a source identifier the creating
// record is linked immediately, so replaying it resolves via existing_link
// instead of creating a duplicate.
func (s *Service) CreateMaster(ctx context.Context, req *models.CreateMasterEntityRequest) (*models.MasterEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.CreateMaster")
	defer span.End()

	canonical := normalizers.Name(req.Name)
	if canonical == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name normalizes to empty")
	}

	entity, err := s.masters.Create(ctx, &models.MasterEntity{
		CanonicalName:     canonical,
		DisplayName:       strings.TrimSpace(req.Name),
		NormalizedAddress: normalizers.Address(req.Address),
		DisplayAddress:    strings.TrimSpace(req.Address),
		City:              strings.ToUpper(strings.TrimSpace(req.City)),
		State:             strings.ToUpper(strings.TrimSpace(req.State)),
		Zip5:              normalizers.Zip(req.Zip),
		NormalizedPhone:   normalizers.Phone(req.Phone),
		Email:             strings.TrimSpace(req.Email),
		LicenseNumber:     strings.TrimSpace(req.LicenseNumber),
		LicenseType:       req.LicenseType,
		Capacity:          req.Capacity,
	})
	if err != nil {
		return nil, err
	}

	if req.SourceIdentifier != "" {
		if _, err := s.links.Upsert(ctx, &models.SourceLink{
			SourceSystem:     req.SourceSystem,
			SourceIdentifier: req.SourceIdentifier,
			SourceName:       req.Name,
			MasterID:         entity.ID,
			MatchMethod:      models.AuditActionCreated,
			MatchScore:       1.0,
		}); err != nil {
			s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": entity.ID}).Warn("Failed to link creating record")
		}
	}

	masterID := entity.ID
	s.appendAudit(ctx, &models.AuditEntry{
		MasterID:         &masterID,
		SourceSystem:     req.SourceSystem,
		SourceIdentifier: req.SourceIdentifier,
		SourceName:       req.Name,
		Action:           models.AuditActionCreated,
		MatchScore:       1.0,
		MatchMethod:      models.AuditActionCreated,
	})

	s.log.WithContext(ctx).WithFields(map[string]any{
		"master_id":      entity.ID,
		"canonical_name": entity.CanonicalName,
		"source_system":  req.SourceSystem,
	}).Info("Created master entity")

	return entity, nil
}

// ApprovePendingMatch finalizes a reviewed match: the pending row is marked
// approved, the source link is written, and the decision is audited. Unlike
// the resolve path, manual decisions are not best-effort; a failed write
// surfaces to the reviewer.
func (s *Service) ApprovePendingMatch(ctx context.Context, id int64, resolvedBy string) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ApprovePendingMatch")
	defer span.End()

	match, err := s.reviews.Resolve(ctx, id, models.PendingMatchStatusApproved, resolvedBy)
	if err != nil {
		return nil, err
	}

	if _, err := s.links.Upsert(ctx, &models.SourceLink{
		SourceSystem:     match.SourceSystem,
		SourceIdentifier: match.SourceIdentifier,
		SourceName:       match.SourceName,
		MasterID:         match.CandidateMasterID,
		MatchMethod:      models.AuditActionManualLink,
		MatchScore:       match.MatchScore,
		MatchDetails:     match.MatchDetails,
	}); err != nil {
		return nil, err
	}

	// An approval decides the record; competing open candidates are closed.
	if open, err := s.reviews.ListOpenForSource(ctx, match.SourceSystem, match.SourceIdentifier); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Failed to list competing pending matches")
	} else {
		for _, competitor := range open {
			if competitor.ID == match.ID {
				continue
			}
			if _, err := s.reviews.Resolve(ctx, competitor.ID, models.PendingMatchStatusRejected, resolvedBy); err != nil {
				s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{"pending_match_id": competitor.ID}).Warn("Failed to close competing pending match")
			}
		}
	}

	masterID := match.CandidateMasterID
	s.appendAudit(ctx, &models.AuditEntry{
		MasterID:         &masterID,
		SourceSystem:     match.SourceSystem,
		SourceIdentifier: match.SourceIdentifier,
		SourceName:       match.SourceName,
		Action:           models.AuditActionManualLink,
		MatchScore:       match.MatchScore,
		MatchMethod:      models.AuditActionManualLink,
		Details:          match.MatchDetails,
	})

	return match, nil
}

// RejectPendingMatch records a reviewer's decision that the candidate pair is
// not the same entity
func (s *Service) RejectPendingMatch(ctx context.Context, id int64, resolvedBy string) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.RejectPendingMatch")
	defer span.End()

	match, err := s.reviews.Resolve(ctx, id, models.PendingMatchStatusRejected, resolvedBy)
	if err != nil {
		return nil, err
	}

	masterID := match.CandidateMasterID
	s.appendAudit(ctx, &models.AuditEntry{
		MasterID:         &masterID,
		SourceSystem:     match.SourceSystem,
		SourceIdentifier: match.SourceIdentifier,
		SourceName:       match.SourceName,
		Action:           models.AuditActionRejected,
		MatchScore:       match.MatchScore,
		MatchMethod:      models.AuditActionManualLink,
		Details:          match.MatchDetails,
	})

	return match, nil
}

// Unlink supersedes the active link for an external record so the next resolve
// re-scores it from scratch. The link row is kept for history.
func (s *Service) Unlink(ctx context.Context, sourceSystem, sourceIdentifier, resolvedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Unlink")
	defer span.End()

	link, err := s.links.GetActive(ctx, sourceSystem, sourceIdentifier)
	if err != nil {
		return err
	}
	if link == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no active link for record")
	}

	if err := s.links.UpdateStatus(ctx, sourceSystem, sourceIdentifier, models.SourceLinkStatusSuperseded); err != nil {
		return err
	}

	masterID := link.MasterID
	s.appendAudit(ctx, &models.AuditEntry{
		MasterID:         &masterID,
		SourceSystem:     sourceSystem,
		SourceIdentifier: sourceIdentifier,
		SourceName:       link.SourceName,
		Action:           models.AuditActionManualUnlink,
		MatchScore:       link.MatchScore,
		MatchMethod:      models.AuditActionManualUnlink,
	})

	s.log.WithContext(ctx).WithFields(map[string]any{
		"source_system":     sourceSystem,
		"source_identifier": sourceIdentifier,
		"master_id":         link.MasterID,
		"resolved_by":       resolvedBy,
	}).Info("Unlinked record from master entity")

	return nil
}
