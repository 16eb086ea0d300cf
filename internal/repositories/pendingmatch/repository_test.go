package pendingmatch

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// stubDB records executed statements; methods the test never reaches stay on
// the embedded nil interface.
type stubDB struct {
	database.DB
	queries []string
}

func (s *stubDB) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	s.queries = append(s.queries, query)
	return nil, nil
}

func TestQueueIsInsertIfAbsent(t *testing.T) {
	db := &stubDB{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := NewRepository(db, logger)

	err := repo.Queue(context.Background(), &models.PendingMatch{
		SourceSystem:      "licensing",
		SourceIdentifier:  "LIC-1",
		SourceName:        "Sunshine Child Care",
		CandidateMasterID: 7,
		MatchScore:        0.72,
	})
	require.NoError(t, err)

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "ON CONFLICT (source_system, source_identifier, candidate_master_id) DO NOTHING")
	assert.NotContains(t, db.queries[0], "DO UPDATE", "re-queueing must not overwrite the stored candidate")
}
