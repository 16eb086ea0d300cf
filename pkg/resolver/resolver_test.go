package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

// fakeRegistry backs every store interface in memory so the decision logic can
// be exercised end to end without Postgres.
type fakeRegistry struct {
	nextID  int64
	masters map[int64]*models.MasterEntity
	links   map[string]*models.SourceLink
	aliases []models.Alias
	pending []models.PendingMatch
	audits  []models.AuditEntry

	findCalls int
	linkErr   error
	auditErr  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		masters: map[int64]*models.MasterEntity{},
		links:   map[string]*models.SourceLink{},
	}
}

func linkKey(system, identifier string) string {
	return system + "|" + identifier
}

func (f *fakeRegistry) Create(_ context.Context, entity *models.MasterEntity) (*models.MasterEntity, error) {
	f.nextID++
	entity.ID = f.nextID
	entity.Active = true
	f.masters[entity.ID] = entity
	return entity, nil
}

func (f *fakeRegistry) Get(_ context.Context, id int64) (*models.MasterEntity, error) {
	if m, ok := f.masters[id]; ok {
		return m, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeRegistry) FindCandidates(_ context.Context, normalizedName, city, zip5 string, prefixLength, maxCandidates int) ([]models.MasterEntity, error) {
	f.findCalls++
	prefix := normalizedName
	if len(prefix) > prefixLength {
		prefix = prefix[:prefixLength]
	}
	var out []models.MasterEntity
	for _, m := range f.masters {
		if !m.Active {
			continue
		}
		if strings.HasPrefix(m.CanonicalName, prefix) ||
			(city != "" && zip5 != "" && strings.EqualFold(m.City, city) && m.Zip5 == zip5) {
			out = append(out, *m)
			if len(out) >= maxCandidates {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRegistry) TouchLastVerified(_ context.Context, _ int64) error { return nil }

func (f *fakeRegistry) GetActive(_ context.Context, system, identifier string) (*models.SourceLink, error) {
	link, ok := f.links[linkKey(system, identifier)]
	if !ok || link.Status != models.SourceLinkStatusActive {
		return nil, nil
	}
	return link, nil
}

func (f *fakeRegistry) Upsert(_ context.Context, link *models.SourceLink) (*models.SourceLink, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	link.Status = models.SourceLinkStatusActive
	f.links[linkKey(link.SourceSystem, link.SourceIdentifier)] = link
	return link, nil
}

func (f *fakeRegistry) UpdateStatus(_ context.Context, system, identifier, status string) error {
	if link, ok := f.links[linkKey(system, identifier)]; ok {
		link.Status = status
	}
	return nil
}

func (f *fakeRegistry) Add(_ context.Context, alias *models.Alias) error {
	f.aliases = append(f.aliases, *alias)
	return nil
}

func (f *fakeRegistry) Queue(_ context.Context, match *models.PendingMatch) error {
	for _, m := range f.pending {
		if m.SourceSystem == match.SourceSystem && m.SourceIdentifier == match.SourceIdentifier && m.CandidateMasterID == match.CandidateMasterID {
			return nil // insert-if-absent
		}
	}
	match.Status = models.PendingMatchStatusPending
	f.pending = append(f.pending, *match)
	return nil
}

func (f *fakeRegistry) Resolve(_ context.Context, id int64, status, resolvedBy string) (*models.PendingMatch, error) {
	for i := range f.pending {
		if f.pending[i].ID == id && f.pending[i].Status == models.PendingMatchStatusPending {
			f.pending[i].Status = status
			f.pending[i].ResolvedBy = &resolvedBy
			return &f.pending[i], nil
		}
	}
	return nil, errors.New("not pending")
}

func (f *fakeRegistry) ListOpenForSource(_ context.Context, system, identifier string) ([]models.PendingMatch, error) {
	var open []models.PendingMatch
	for _, m := range f.pending {
		if m.SourceSystem == system && m.SourceIdentifier == identifier && m.Status == models.PendingMatchStatusPending {
			open = append(open, m)
		}
	}
	return open, nil
}

func (f *fakeRegistry) Append(_ context.Context, entry *models.AuditEntry) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, *entry)
	return nil
}

func newTestService(f *fakeRegistry) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(logger, f, f, f, f, f)
}

func seedMaster(f *fakeRegistry, entity models.MasterEntity) *models.MasterEntity {
	created, _ := f.Create(context.Background(), &entity)
	return created
}

func TestResolve_BlankNameShortCircuits(t *testing.T) {
	f := newFakeRegistry()
	svc := newTestService(f)

	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:         "  -- ",
		SourceSystem: "licensing",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, models.MatchMethodNoCandidates, result.MatchMethod)
	assert.Equal(t, 0, f.findCalls, "blank name should not hit the store")
}

func TestResolve_EmptyRegistry(t *testing.T) {
	f := newFakeRegistry()
	svc := newTestService(f)

	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Daycare LLC",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1001",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Nil(t, result.MasterID)
	assert.Equal(t, models.MatchMethodNoCandidates, result.MatchMethod)
}

func TestResolve_AutoMatchOnFullAgreement(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{
		CanonicalName:     "SUNSHINE CHILDCARE",
		DisplayName:       "Sunshine Day Care LLC",
		NormalizedAddress: "123 N MAIN ST",
		City:              "SPRINGFIELD",
		Zip5:              "62704",
		NormalizedPhone:   "2175551234",
	})
	svc := newTestService(f)

	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Child Care, LLC",
		Address:          "123 North Main Street",
		City:             "Springfield",
		Zip:              "62704-1234",
		Phone:            "(217) 555-1234",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1001",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.NotNil(t, result.MasterID)
	assert.Equal(t, master.ID, *result.MasterID)
	assert.Equal(t, models.MatchMethodAutoMatch, result.MatchMethod)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Len(t, result.MatchDetails, 5)

	link, ok := f.links[linkKey("licensing", "LIC-1001")]
	require.True(t, ok, "auto-match should write the source link")
	assert.Equal(t, master.ID, link.MasterID)
	assert.Equal(t, models.SourceLinkStatusActive, link.Status)

	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionMatched, f.audits[0].Action)
	assert.Equal(t, models.MatchMethodAutoMatch, f.audits[0].MatchMethod)
}

func TestResolve_ExistingLinkIsIdempotent(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{
		CanonicalName:     "SUNSHINE CHILDCARE",
		NormalizedAddress: "123 N MAIN ST",
		City:              "SPRINGFIELD",
		Zip5:              "62704",
	})
	svc := newTestService(f)

	input := &models.ResolveInput{
		Name:             "Sunshine Childcare",
		Address:          "123 N Main St",
		City:             "Springfield",
		Zip:              "62704",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1001",
	}

	first, err := svc.Resolve(context.Background(), input, models.DefaultMatchConfig())
	require.NoError(t, err)
	require.True(t, first.Matched)

	// Mutate the registry so a re-score would land somewhere else.
	seedMaster(f, models.MasterEntity{
		CanonicalName: "SUNSHINE CHILDCARE",
		City:          "SPRINGFIELD",
		Zip5:          "62704",
	})
	f.masters[master.ID].Active = false

	second, err := svc.Resolve(context.Background(), input, models.DefaultMatchConfig())
	require.NoError(t, err)
	assert.Equal(t, models.MatchMethodExistingLink, second.MatchMethod)
	require.NotNil(t, second.MasterID)
	assert.Equal(t, master.ID, *second.MasterID, "replay must return the originally linked master")
}

func TestResolve_NeedsReviewBand(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{
		CanonicalName: "SUNSHINE CHILDCARE",
		City:          "SPRINGFIELD",
		Zip5:          "62704",
	})
	svc := newTestService(f)

	// name 0.35 + city 0.15 + zip 0.15 = 0.65: review band, no address or
	// phone on either side.
	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Childcare",
		City:             "Springfield",
		Zip:              "62704",
		SourceSystem:     "grants",
		SourceIdentifier: "G-77",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.True(t, result.NeedsReview)
	assert.Equal(t, models.MatchMethodNeedsReview, result.MatchMethod)
	require.NotNil(t, result.MasterID)
	assert.Equal(t, master.ID, *result.MasterID)
	assert.InDelta(t, 0.65, result.Score, 1e-9)

	require.Len(t, f.pending, 1)
	assert.Equal(t, master.ID, f.pending[0].CandidateMasterID)
	_, linked := f.links[linkKey("grants", "G-77")]
	assert.False(t, linked, "review band must not create a source link")
}

func TestResolve_LowConfidenceBand(t *testing.T) {
	f := newFakeRegistry()
	seedMaster(f, models.MasterEntity{
		CanonicalName: "SUNSHINE CHILDCARE",
		Zip5:          "62704",
	})
	svc := newTestService(f)

	// name 0.35 + zip 0.15 = 0.50: above reject, below review.
	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Childcare",
		Zip:              "62704",
		SourceSystem:     "grants",
		SourceIdentifier: "G-78",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.False(t, result.NeedsReview)
	assert.Nil(t, result.MasterID)
	assert.Equal(t, models.MatchMethodLowConfidence, result.MatchMethod)
	assert.InDelta(t, 0.50, result.Score, 1e-9)

	assert.Empty(t, f.pending)
	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionRejected, f.audits[0].Action)
}

func TestResolve_BelowRejectThreshold(t *testing.T) {
	f := newFakeRegistry()
	seedMaster(f, models.MasterEntity{
		CanonicalName: "SUNSHINE CHILDCARE",
	})
	svc := newTestService(f)

	// Name similarity alone caps the composite at 0.35.
	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:         "Sunshine Childcare",
		SourceSystem: "grants",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, models.MatchMethodLowConfidence, result.MatchMethod)
	assert.Less(t, result.Score, 0.40)
}

func TestResolve_MissingFieldsLowerCeilingNotScore(t *testing.T) {
	f := newFakeRegistry()
	seedMaster(f, models.MasterEntity{
		CanonicalName: "SUNSHINE CHILDCARE",
		City:          "SPRINGFIELD",
		Zip5:          "62704",
	})
	svc := newTestService(f)

	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Childcare",
		Address:          "500 Oak Avenue", // master has no address: excluded, not zero
		City:             "Springfield",
		Zip:              "62704",
		SourceSystem:     "grants",
		SourceIdentifier: "G-79",
	}, models.DefaultMatchConfig())

	require.NoError(t, err)
	assert.InDelta(t, 0.65, result.Score, 1e-9)
	for _, d := range result.MatchDetails {
		assert.NotEqual(t, "address", d.Criterion)
	}
}

func TestResolve_SideEffectWriteFailuresAreSwallowed(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{
		CanonicalName:     "SUNSHINE CHILDCARE",
		NormalizedAddress: "123 N MAIN ST",
		City:              "SPRINGFIELD",
		Zip5:              "62704",
		NormalizedPhone:   "2175551234",
	})
	f.linkErr = errors.New("pg down")
	f.auditErr = errors.New("pg down")
	svc := newTestService(f)

	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Sunshine Childcare",
		Address:          "123 N Main St",
		City:             "Springfield",
		Zip:              "62704",
		Phone:            "217-555-1234",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-9",
	}, models.DefaultMatchConfig())

	require.NoError(t, err, "write failures must not fail the resolution")
	assert.True(t, result.Matched)
	assert.Equal(t, master.ID, *result.MasterID)
}

func TestCreateMaster_LinksCreatingRecord(t *testing.T) {
	f := newFakeRegistry()
	svc := newTestService(f)

	entity, err := svc.CreateMaster(context.Background(), &models.CreateMasterEntityRequest{
		Name:             "Little Sprouts Day Care, Inc.",
		City:             "Peoria",
		Zip:              "61602",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-2002",
	})
	require.NoError(t, err)
	assert.Equal(t, "LITTLE SPROUTS CHILDCARE", entity.CanonicalName)

	// The creating record must now resolve through its link, not a re-score.
	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Little Sprouts Day Care, Inc.",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-2002",
	}, models.DefaultMatchConfig())
	require.NoError(t, err)
	assert.Equal(t, models.MatchMethodExistingLink, result.MatchMethod)
	assert.Equal(t, entity.ID, *result.MasterID)

	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionCreated, f.audits[0].Action)
}

func TestApprovePendingMatch(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{CanonicalName: "SUNSHINE CHILDCARE"})
	f.pending = []models.PendingMatch{{
		ID:                1,
		SourceSystem:      "grants",
		SourceIdentifier:  "G-77",
		SourceName:        "Sunshine Child Care",
		CandidateMasterID: master.ID,
		MatchScore:        0.72,
		Status:            models.PendingMatchStatusPending,
	}}
	svc := newTestService(f)

	match, err := svc.ApprovePendingMatch(context.Background(), 1, "reviewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PendingMatchStatusApproved, match.Status)

	link, ok := f.links[linkKey("grants", "G-77")]
	require.True(t, ok)
	assert.Equal(t, master.ID, link.MasterID)
	assert.Equal(t, models.AuditActionManualLink, link.MatchMethod)

	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionManualLink, f.audits[0].Action)

	// Approving twice is a conflict, not a double write.
	_, err = svc.ApprovePendingMatch(context.Background(), 1, "reviewer@example.com")
	assert.Error(t, err)
}

func TestApprovePendingMatch_ClosesCompetingCandidates(t *testing.T) {
	f := newFakeRegistry()
	first := seedMaster(f, models.MasterEntity{CanonicalName: "SUNSHINE CHILDCARE"})
	second := seedMaster(f, models.MasterEntity{CanonicalName: "SUNSHINE CHILDCARE CENTER"})
	f.pending = []models.PendingMatch{
		{
			ID:                1,
			SourceSystem:      "grants",
			SourceIdentifier:  "G-77",
			CandidateMasterID: first.ID,
			MatchScore:        0.72,
			Status:            models.PendingMatchStatusPending,
		},
		{
			ID:                2,
			SourceSystem:      "grants",
			SourceIdentifier:  "G-77",
			CandidateMasterID: second.ID,
			MatchScore:        0.66,
			Status:            models.PendingMatchStatusPending,
		},
		{
			ID:                3,
			SourceSystem:      "grants",
			SourceIdentifier:  "G-99",
			CandidateMasterID: second.ID,
			MatchScore:        0.61,
			Status:            models.PendingMatchStatusPending,
		},
	}
	svc := newTestService(f)

	_, err := svc.ApprovePendingMatch(context.Background(), 1, "reviewer@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.PendingMatchStatusApproved, f.pending[0].Status)
	assert.Equal(t, models.PendingMatchStatusRejected, f.pending[1].Status)
	// A different record's candidates are untouched.
	assert.Equal(t, models.PendingMatchStatusPending, f.pending[2].Status)
}

func TestUnlink(t *testing.T) {
	f := newFakeRegistry()
	master := seedMaster(f, models.MasterEntity{CanonicalName: "SUNSHINE CHILDCARE"})
	f.links[linkKey("licensing", "LIC-1")] = &models.SourceLink{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1",
		MasterID:         master.ID,
		Status:           models.SourceLinkStatusActive,
	}
	svc := newTestService(f)

	require.NoError(t, svc.Unlink(context.Background(), "licensing", "LIC-1", "reviewer@example.com"))
	assert.Equal(t, models.SourceLinkStatusSuperseded, f.links[linkKey("licensing", "LIC-1")].Status)

	// No active link left to unlink.
	err := svc.Unlink(context.Background(), "licensing", "LIC-1", "reviewer@example.com")
	assert.Error(t, err)

	// The record is free to re-resolve from scratch.
	result, err := svc.Resolve(context.Background(), &models.ResolveInput{
		Name:             "Totally Different Name",
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1",
	}, models.DefaultMatchConfig())
	require.NoError(t, err)
	assert.NotEqual(t, models.MatchMethodExistingLink, result.MatchMethod)
}
