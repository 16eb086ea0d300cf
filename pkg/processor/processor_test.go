package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeResolver struct {
	result     *models.ResolveResult
	resolveErr error
	created    []*models.CreateMasterEntityRequest
	resolved   []*models.ResolveInput
}

func (f *fakeResolver) Resolve(_ context.Context, input *models.ResolveInput, _ models.MatchConfig) (*models.ResolveResult, error) {
	f.resolved = append(f.resolved, input)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.result, nil
}

func (f *fakeResolver) CreateMaster(_ context.Context, req *models.CreateMasterEntityRequest) (*models.MasterEntity, error) {
	f.created = append(f.created, req)
	return &models.MasterEntity{ID: int64(len(f.created)), CanonicalName: req.Name}, nil
}

type fakeEmitter struct {
	resolved []string
	created  []int64
	err      error
}

func (f *fakeEmitter) EmitResolved(_ context.Context, _ *models.ResolveInput, result *models.ResolveResult) error {
	f.resolved = append(f.resolved, result.MatchMethod)
	return f.err
}

func (f *fakeEmitter) EmitMasterCreated(_ context.Context, _ *models.ResolveInput, entity *models.MasterEntity) error {
	f.created = append(f.created, entity.ID)
	return f.err
}

func newTestProcessor(r *fakeResolver, e *fakeEmitter) *Processor {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	cfg := Config{Match: models.DefaultMatchConfig(), CreateUnmatched: true}
	var emitter Emitter
	if e != nil {
		emitter = e
	}
	return NewProcessor(cfg, r, emitter, logger)
}

func recordMessage(t *testing.T, record kafka.ProviderRecordMessage) *kafka.IncomingMessage {
	t.Helper()
	value, err := json.Marshal(record)
	require.NoError(t, err)
	msg := &kafka.IncomingMessage{Key: record.SourceIdentifier, Value: value, Headers: map[string]string{}}
	require.NoError(t, msg.ParseRecord())
	return msg
}

func TestProcessMessage_MatchedRecordEmitsDecision(t *testing.T) {
	masterID := int64(7)
	r := &fakeResolver{result: &models.ResolveResult{
		Matched:     true,
		MasterID:    &masterID,
		Score:       0.93,
		MatchMethod: models.MatchMethodAutoMatch,
	}}
	e := &fakeEmitter{}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1001",
		Name:             "Sunshine Childcare",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, r.created)
	assert.Equal(t, []string{models.MatchMethodAutoMatch}, e.resolved)
}

func TestProcessMessage_UnmatchedRecordSeedsMaster(t *testing.T) {
	r := &fakeResolver{result: &models.ResolveResult{
		Matched:     false,
		MatchMethod: models.MatchMethodNoCandidates,
	}}
	e := &fakeEmitter{}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "grants",
		SourceIdentifier: "G-42",
		Name:             "Little Sprouts Daycare",
		City:             "Peoria",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	require.Len(t, r.created, 1)
	assert.Equal(t, "G-42", r.created[0].SourceIdentifier)
	assert.Equal(t, []int64{1}, e.created)
	assert.Empty(t, e.resolved)
}

func TestProcessMessage_ReviewBandDoesNotCreate(t *testing.T) {
	masterID := int64(3)
	r := &fakeResolver{result: &models.ResolveResult{
		Matched:     false,
		MasterID:    &masterID,
		Score:       0.7,
		MatchMethod: models.MatchMethodNeedsReview,
		NeedsReview: true,
	}}
	e := &fakeEmitter{}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-5",
		Name:             "Sunshine Childcare",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, r.created)
	assert.Equal(t, []string{models.MatchMethodNeedsReview}, e.resolved)
}

func TestProcessMessage_PlausibleLowConfidenceDoesNotCreate(t *testing.T) {
	// Score in [reject, review): a candidate existed, so seeding a new master
	// would risk a duplicate.
	r := &fakeResolver{result: &models.ResolveResult{
		Matched:     false,
		Score:       0.5,
		MatchMethod: models.MatchMethodLowConfidence,
	}}
	e := &fakeEmitter{}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "grants",
		SourceIdentifier: "G-9",
		Name:             "Sunshine Childcare",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, r.created)
	assert.Equal(t, []string{models.MatchMethodLowConfidence}, e.resolved)
}

func TestProcessMessage_InvalidRecordIsDropped(t *testing.T) {
	r := &fakeResolver{}
	e := &fakeEmitter{}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-0",
		// no name
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg), "invalid records must commit, not retry")
	assert.Empty(t, r.resolved)
}

func TestProcessMessage_ResolveErrorTriggersRedelivery(t *testing.T) {
	r := &fakeResolver{resolveErr: errors.New("pg down")}
	p := newTestProcessor(r, &fakeEmitter{})

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-1",
		Name:             "Sunshine Childcare",
	})

	assert.Error(t, p.ProcessMessage(context.Background(), msg))
}

func TestProcessMessage_EmitFailureDoesNotFailMessage(t *testing.T) {
	masterID := int64(7)
	r := &fakeResolver{result: &models.ResolveResult{
		Matched:     true,
		MasterID:    &masterID,
		MatchMethod: models.MatchMethodAutoMatch,
	}}
	e := &fakeEmitter{err: errors.New("broker down")}
	p := newTestProcessor(r, e)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-2",
		Name:             "Sunshine Childcare",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
}

func TestProcessMessage_NilEmitter(t *testing.T) {
	r := &fakeResolver{result: &models.ResolveResult{Matched: false, MatchMethod: models.MatchMethodNoCandidates}}
	p := newTestProcessor(r, nil)

	msg := recordMessage(t, kafka.ProviderRecordMessage{
		SourceSystem:     "licensing",
		SourceIdentifier: "LIC-3",
		Name:             "Sunshine Childcare",
	})

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
}
