package orm

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

func TestModel(t *testing.T) {
	db, _ := newTestDB(t)

	m, err := db.Model("Artist")
	require.NoError(t, err)
	assert.Equal(t, "Artist", m.Name())
	assert.Equal(t, "artists", m.Table().Name)

	_, err = db.Model("Album")
	assert.Error(t, err)
}

func TestModelExec(t *testing.T) {
	ctx := context.Background()

	t.Run("findMany honors select", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."popularity" >= \$1 ORDER BY "t0"\."name" ASC LIMIT 2$`).
			WithArgs(int64(50)).
			WillReturnRows(artistRows().AddRow("a1", "Blur", "blur", 60).AddRow("a2", "Muse", "muse", 70))

		m, err := db.Model("Artist")
		require.NoError(t, err)
		out, err := m.Exec(ctx, OpFindMany, map[string]any{
			"where":   map[string]any{"popularity": map[string]any{"gte": float64(50)}},
			"orderBy": map[string]any{"name": "asc"},
			"take":    float64(2),
			"select":  map[string]any{"name": true, "popularity": true},
		})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{
			{"name": "Blur", "popularity": 60},
			{"name": "Muse", "popularity": 70},
		}, out)
	})

	t.Run("findUnique includes relations", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1$`).WithArgs("muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 70))
		mock.ExpectQuery(`FROM "songs" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
			WithArgs([]string{"a1"}).
			WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 80))

		m, err := db.Model("Artist")
		require.NoError(t, err)
		out, err := m.Exec(ctx, OpFindUnique, map[string]any{
			"where":   map[string]any{"slug": "muse"},
			"include": map[string]any{"songs": map[string]any{"select": map[string]any{"title": true}}},
		})
		require.NoError(t, err)
		row, ok := out.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Muse", row["name"])
		assert.Equal(t, []map[string]any{{"title": "Uprising"}}, row["songs"])
	})

	t.Run("findUnique without a match", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "artists"`).WillReturnRows(artistRows())

		m, err := db.Model("Artist")
		require.NoError(t, err)
		out, err := m.Exec(ctx, OpFindUnique, map[string]any{"where": map[string]any{"slug": "nobody"}})
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("count", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

		m, err := db.Model("Vote")
		require.NoError(t, err)
		out, err := m.Exec(ctx, OpCount, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(42), out)
	})

	t.Run("aggregate", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT MAX\("t0"\."vote_count"\) FROM`).
			WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(99)))

		m, err := db.Model("SetlistSong")
		require.NoError(t, err)
		out, err := m.Exec(ctx, OpAggregate, map[string]any{"_max": map[string]any{"voteCount": true}})
		require.NoError(t, err)
		res, ok := out.(*query.AggregateResult)
		require.True(t, ok)
		assert.Equal(t, int64(99), res.Max["voteCount"])
	})

	t.Run("unknown operation", func(t *testing.T) {
		db, _ := newTestDB(t)
		m, err := db.Model("Artist")
		require.NoError(t, err)
		_, err = m.Exec(ctx, "truncate", nil)
		assert.ErrorContains(t, err, `unknown operation "truncate"`)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		db, _ := newTestDB(t)
		m, err := db.Model("Artist")
		require.NoError(t, err)
		_, err = m.Exec(ctx, OpFindMany, map[string]any{"take": "ten"})
		assert.True(t, runtime.IsValidation(err))
	})
}

func TestOperations(t *testing.T) {
	ops := Operations()
	assert.Len(t, ops, 16)
	assert.Contains(t, ops, OpCreateManyAndReturn)
}
