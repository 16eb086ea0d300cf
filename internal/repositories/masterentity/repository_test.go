package masterentity

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
)

func TestCandidateQuery(t *testing.T) {
	t.Run("city and zip use exact comparison", func(t *testing.T) {
		query, args := candidateQuery("SUNSHINE CHILDCARE", "SPRINGFIELD", "62704", 10, 100)

		assert.Contains(t, query, "UPPER(m.city) = $2")
		assert.Contains(t, query, "m.zip5 = $3")
		assert.NotContains(t, query, "ILIKE")

		require.Len(t, args, 3)
		assert.Equal(t, "SUNSHINE C%", args[0])
		assert.Equal(t, "SPRINGFIELD", args[1])
		assert.Equal(t, "62704", args[2])
	})

	t.Run("city wildcards are passed as literal values", func(t *testing.T) {
		_, args := candidateQuery("SUNSHINE CHILDCARE", "%", "62704", 10, 100)

		require.Len(t, args, 3)
		assert.Equal(t, "%", args[1], "city is compared with =, not a pattern")
	})

	t.Run("name prefix is wildcard-escaped", func(t *testing.T) {
		_, args := candidateQuery(`A%B_C\D`, "", "", 10, 100)

		require.Len(t, args, 1)
		assert.Equal(t, `A\%B\_C\\D%`, args[0])
	})

	t.Run("city block omitted when city or zip missing", func(t *testing.T) {
		query, args := candidateQuery("SUNSHINE CHILDCARE", "SPRINGFIELD", "", 10, 100)

		assert.NotContains(t, query, "m.city")
		assert.Len(t, args, 1)
	})

	t.Run("defaults applied to invalid limits", func(t *testing.T) {
		query, args := candidateQuery("SUNSHINE CHILDCARE", "", "", 0, 0)

		assert.Contains(t, query, "LIMIT 100")
		assert.Equal(t, "SUNSHINE C%", args[0])
	})
}

// fakeTx mimics the transaction contract: a rollback invoked with the
// transaction-owning context is a no-op, so the caller must defer Rollback
// with the pre-transaction context.
type fakeTx struct {
	failOnCall int
	execCalls  int
	queries    []string
	committed  bool
	rolledBack bool
}

type txOwnerKey struct{}

func (f *fakeTx) IsOpen() bool { return !f.committed && !f.rolledBack }

func (f *fakeTx) Commit(_ context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.committed {
		return nil
	}
	if ctx.Value(txOwnerKey{}) != nil {
		return nil // the owning context closes the transaction, not us
	}
	f.rolledBack = true
	return nil
}

func (f *fakeTx) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.execCalls++
	f.queries = append(f.queries, query)
	if f.execCalls == f.failOnCall {
		return nil, errors.New("exec failed")
	}
	return nil, nil
}

func (f *fakeTx) GetContext(_ context.Context, _ any, _ string, _ ...any) error    { return nil }
func (f *fakeTx) SelectContext(_ context.Context, _ any, _ string, _ ...any) error { return nil }
func (f *fakeTx) QueryRowxContext(_ context.Context, _ string, _ ...any) *sqlx.Row { return nil }

// stubDB hands out the fake transaction; methods the tests never reach stay on
// the embedded nil interface.
type stubDB struct {
	database.DB
	tx *fakeTx
}

func (s *stubDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	return context.WithValue(ctx, txOwnerKey{}, "open"), s.tx, nil
}

func TestDeactivate(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	t.Run("supersedes links and commits", func(t *testing.T) {
		tx := &fakeTx{}
		repo := NewRepository(&stubDB{tx: tx}, logger)

		require.NoError(t, repo.Deactivate(context.Background(), 7))
		assert.True(t, tx.committed)
		require.Len(t, tx.queries, 2)
		assert.Contains(t, tx.queries[0], "master_entities")
		assert.Contains(t, tx.queries[1], "source_links")
	})

	t.Run("rolls back when a statement fails", func(t *testing.T) {
		tx := &fakeTx{failOnCall: 2}
		repo := NewRepository(&stubDB{tx: tx}, logger)

		require.Error(t, repo.Deactivate(context.Background(), 7))
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack, "deferred rollback must run with the pre-transaction context")
	})
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SUNSHINE", "SUNSHINE"},
		{"100%", `100\%`},
		{"A_B", `A\_B`},
		{`A\B`, `A\\B`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, escapeLike(tt.input), "escapeLike(%q)", tt.input)
	}
}
