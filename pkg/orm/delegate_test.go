package orm

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/models"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

func TestFor(t *testing.T) {
	db, _ := newTestDB(t)

	d, err := For[models.Artist](db)
	require.NoError(t, err)
	assert.Equal(t, "Artist", d.Model())

	type unregistered struct{ ID string }
	_, err = For[unregistered](db)
	assert.Error(t, err)
	assert.Panics(t, func() { MustFor[unregistered](db) })
}

func TestFindUnique(t *testing.T) {
	ctx := context.Background()
	const sql = `SELECT .+ FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1$`

	t.Run("found", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs("radiohead").
			WillReturnRows(artistRows().AddRow("a1", "Radiohead", "radiohead", 88))

		a, err := MustFor[models.Artist](db).FindUnique(ctx, &query.FindUniqueArgs{
			Where: query.WhereUnique{"slug": "radiohead"},
		})
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "a1", a.ID)
		assert.Equal(t, 88, a.Popularity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is nil", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs("nobody").WillReturnRows(artistRows())

		a, err := MustFor[models.Artist](db).FindUnique(ctx, &query.FindUniqueArgs{
			Where: query.WhereUnique{"slug": "nobody"},
		})
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("or throw", func(t *testing.T) {
		m := newTestMetrics()
		db, mock := newTestDB(t, WithMetrics(m))
		mock.ExpectQuery(sql).WithArgs("nobody").WillReturnRows(artistRows())

		_, err := MustFor[models.Artist](db).FindUniqueOrThrow(ctx, &query.FindUniqueArgs{
			Where: query.WhereUnique{"slug": "nobody"},
		})
		var nf *runtime.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Artist", nf.Model)
		assert.Equal(t, OpFindUniqueOrThrow, nf.Operation)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Artist", OpFindUniqueOrThrow, "not_found")))
	})

	t.Run("non-unique selector is rejected before querying", func(t *testing.T) {
		db, mock := newTestDB(t)
		_, err := MustFor[models.Artist](db).FindUnique(ctx, &query.FindUniqueArgs{
			Where: query.WhereUnique{"name": "Radiohead"},
		})
		assert.True(t, runtime.IsValidation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("select clears other fields", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs("muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 70))

		a, err := MustFor[models.Artist](db).FindUnique(ctx, &query.FindUniqueArgs{
			Where:  query.WhereUnique{"slug": "muse"},
			Select: query.Select{"name": true},
		})
		require.NoError(t, err)
		assert.Equal(t, "Muse", a.Name)
		assert.Empty(t, a.ID)
		assert.Zero(t, a.Popularity)
	})
}

func TestFindFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("takes one row", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "venues" AS "t0" WHERE "t0"\."city" = \$1 ORDER BY "t0"\."name" ASC LIMIT 1$`).
			WithArgs("Paris").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "city"}).AddRow("v1", "Bercy", "Paris"))

		v, err := MustFor[models.Venue](db).FindFirst(ctx, &query.FindFirstArgs{
			Where:   query.Where{"city": "Paris"},
			OrderBy: query.OrderBy{query.By("name", query.Asc)},
		})
		require.NoError(t, err)
		assert.Equal(t, "Bercy", v.Name)
	})

	t.Run("negative take reads from the end", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`ORDER BY "t0"\."name" DESC, "t0"\."id" DESC LIMIT 1$`).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "city"}).AddRow("v9", "Zenith", "Paris"))

		v, err := MustFor[models.Venue](db).FindFirst(ctx, &query.FindFirstArgs{
			OrderBy: query.OrderBy{query.By("name", query.Asc)},
			Take:    query.Int(-5),
		})
		require.NoError(t, err)
		assert.Equal(t, "Zenith", v.Name)
	})

	t.Run("or throw", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "venues"`).WillReturnRows(pgxmock.NewRows([]string{"id"}))

		_, err := MustFor[models.Venue](db).FindFirstOrThrow(ctx, nil)
		assert.True(t, runtime.IsNotFound(err))
	})
}

func TestFindMany(t *testing.T) {
	ctx := context.Background()

	t.Run("empty result is not nil", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`FROM "artists" AS "t0"$`).WillReturnRows(artistRows())

		artists, err := MustFor[models.Artist](db).FindMany(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, artists)
		assert.Empty(t, artists)
	})

	t.Run("select and include together", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := MustFor[models.Artist](db).FindMany(ctx, &query.FindManyArgs{
			Select:  query.Select{"name": true},
			Include: query.Include{"shows": true},
		})
		var ve *runtime.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Error(), query.SelectIncludeConflict)
	})

	t.Run("negative skip", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := MustFor[models.Artist](db).FindMany(ctx, &query.FindManyArgs{Skip: query.Int(-1)})
		assert.True(t, runtime.IsValidation(err))
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("single row", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^INSERT INTO "artists" \("id", "name", "slug", "updated_at"\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING `).
			WithArgs(pgxmock.AnyArg(), "Muse", "muse", testNow).
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))

		a, err := MustFor[models.Artist](db).Create(ctx, &query.CreateArgs{
			Data: query.Data{"name": "Muse", "slug": "muse"},
		})
		require.NoError(t, err)
		assert.Equal(t, "a1", a.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested create runs in a transaction", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`^INSERT INTO "artists"`).
			WithArgs(pgxmock.AnyArg(), "Muse", "muse", testNow).
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
		mock.ExpectQuery(`^INSERT INTO "songs" \("id", "artist_id", "title", "updated_at"\)`).
			WithArgs(pgxmock.AnyArg(), "a1", "Uprising", testNow).
			WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 0))
		mock.ExpectCommit()

		_, err := MustFor[models.Artist](db).Create(ctx, &query.CreateArgs{
			Data: query.Data{
				"name":  "Muse",
				"slug":  "muse",
				"songs": query.CreateRelated(query.Data{"title": "Uprising"}),
			},
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed nested write rolls back", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`^INSERT INTO "artists"`).
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
		mock.ExpectRollback()

		_, err := MustFor[models.Artist](db).Create(ctx, &query.CreateArgs{
			Data: query.Data{
				"name":  "Muse",
				"slug":  "muse",
				"songs": query.CreateRelated(query.Data{"title": "Uprising", "artistId": "other"}),
			},
		})
		assert.True(t, runtime.IsValidation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing required field", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := MustFor[models.Artist](db).Create(ctx, &query.CreateArgs{Data: query.Data{"name": "Muse"}})
		var ve *runtime.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "data.slug", ve.Field)
	})
}

func TestCreateMany(t *testing.T) {
	ctx := context.Background()

	t.Run("no rows", func(t *testing.T) {
		db, mock := newTestDB(t)
		n, err := MustFor[models.Artist](db).CreateMany(ctx, &query.CreateManyArgs{})
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skip duplicates", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectExec(`^INSERT INTO "artists" .+ VALUES \(.+\), \(.+\) ON CONFLICT DO NOTHING$`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		n, err := MustFor[models.Artist](db).CreateMany(ctx, &query.CreateManyArgs{
			Data: []query.Data{
				{"name": "Muse", "slug": "muse"},
				{"name": "Blur", "slug": "blur"},
			},
			SkipDuplicates: true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("nested writes are rejected", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := MustFor[models.Artist](db).CreateMany(ctx, &query.CreateManyArgs{
			Data: []query.Data{{"name": "Muse", "slug": "muse", "songs": query.CreateRelated(query.Data{"title": "Uprising"})}},
		})
		var ve *runtime.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "data.0.songs", ve.Field)
	})

	t.Run("and return", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^INSERT INTO "artists" .+ RETURNING `).
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0).AddRow("a2", "Blur", "blur", 0))

		artists, err := MustFor[models.Artist](db).CreateManyAndReturn(ctx, &query.CreateManyAndReturnArgs{
			Data: []query.Data{
				{"name": "Muse", "slug": "muse"},
				{"name": "Blur", "slug": "blur"},
			},
			Select: query.Select{"slug": true},
		})
		require.NoError(t, err)
		require.Len(t, artists, 2)
		assert.Equal(t, "blur", artists[1].Slug)
		assert.Empty(t, artists[1].Name)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	const sql = `^UPDATE "artists" AS "t0" SET "popularity" = "popularity" \+ \$1, "updated_at" = \$2 WHERE "t0"\."slug" = \$3 RETURNING `

	t.Run("updated", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs(int64(5), testNow, "muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 75))

		a, err := MustFor[models.Artist](db).Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"slug": "muse"},
			Data:  query.Data{"popularity": query.Increment(5)},
		})
		require.NoError(t, err)
		assert.Equal(t, 75, a.Popularity)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs(int64(5), testNow, "nobody").WillReturnRows(artistRows())

		_, err := MustFor[models.Artist](db).Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"slug": "nobody"},
			Data:  query.Data{"popularity": query.Increment(5)},
		})
		var nf *runtime.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, OpUpdate, nf.Operation)
	})

	t.Run("connect a parent", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1$`).WithArgs("muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
		mock.ExpectQuery(`^UPDATE "songs" AS "t0" SET "artist_id" = \$1, "updated_at" = \$2 WHERE "t0"\."id" = \$3 RETURNING `).
			WithArgs("a1", testNow, "s1").
			WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 0))
		mock.ExpectCommit()

		s, err := MustFor[models.Song](db).Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"id": "s1"},
			Data:  query.Data{"artist": query.Connect(query.WhereUnique{"slug": "muse"})},
		})
		require.NoError(t, err)
		assert.Equal(t, "a1", s.ArtistID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty data leaves updatedAt alone", func(t *testing.T) {
		db, mock := newTestDB(t)
		stamped := testNow.Add(-24 * time.Hour)
		mock.ExpectQuery(`^SELECT .+ FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1$`).WithArgs("muse").
			WillReturnRows(pgxmock.NewRows([]string{"id", "slug", "updated_at"}).AddRow("a1", "muse", stamped))

		a, err := MustFor[models.Artist](db).Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"slug": "muse"},
			Data:  query.Data{},
		})
		require.NoError(t, err)
		assert.Equal(t, stamped, a.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("required parent cannot be disconnected", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := MustFor[models.Song](db).Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"id": "s1"},
			Data:  query.Data{"artist": query.RelationWrite{query.WriteDisconnect: true}},
		})
		assert.True(t, runtime.IsValidation(err))
	})
}

func TestUpdateMany(t *testing.T) {
	ctx := context.Background()

	t.Run("updates matching rows", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectExec(`^UPDATE "shows" AS "t0" SET "status" = \$1, "updated_at" = \$2 WHERE "t0"\."status" = \$3$`).
			WithArgs("completed", testNow, "ongoing").
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))

		n, err := MustFor[models.Show](db).UpdateMany(ctx, &query.UpdateManyArgs{
			Where: query.Where{"status": "ongoing"},
			Data:  query.Data{"status": "completed"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("nothing to set counts the matches", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM \(SELECT "t0"\.\* FROM "votes" AS "t0" WHERE "t0"\."show_id" = \$1\) AS "t0"$`).
			WithArgs("s1").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

		n, err := MustFor[models.Vote](db).UpdateMany(ctx, &query.UpdateManyArgs{
			Where: query.Where{"showId": "s1"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("empty data does not stamp updatedAt", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM \(SELECT "t0"\.\* FROM "shows" AS "t0" WHERE "t0"\."status" = \$1\) AS "t0"$`).
			WithArgs("ongoing").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

		n, err := MustFor[models.Show](db).UpdateMany(ctx, &query.UpdateManyArgs{
			Where: query.Where{"status": "ongoing"},
			Data:  query.Data{},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid enum value", func(t *testing.T) {
		db, _ := newTestDB(t)
		_, err := MustFor[models.Show](db).UpdateMany(ctx, &query.UpdateManyArgs{
			Data: query.Data{"status": "postponed"},
		})
		assert.True(t, runtime.IsValidation(err))
	})
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	const lock = `FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1 FOR UPDATE$`
	args := &query.UpsertArgs{
		Where:  query.WhereUnique{"slug": "muse"},
		Create: query.Data{"name": "Muse", "slug": "muse"},
		Update: query.Data{"popularity": 90},
	}

	t.Run("creates a missing row", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("muse").WillReturnRows(artistRows())
		mock.ExpectQuery(`^INSERT INTO "artists"`).
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
		mock.ExpectCommit()

		a, err := MustFor[models.Artist](db).Upsert(ctx, args)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Popularity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates an existing row", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 70))
		mock.ExpectQuery(`^UPDATE "artists" AS "t0" SET "popularity" = \$1, "updated_at" = \$2`).
			WithArgs(int64(90), testNow, "muse").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 90))
		mock.ExpectCommit()

		a, err := MustFor[models.Artist](db).Upsert(ctx, args)
		require.NoError(t, err)
		assert.Equal(t, 90, a.Popularity)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	const sql = `^DELETE FROM "artists" AS "t0" WHERE "t0"\."id" = \$1 RETURNING `

	t.Run("returns the deleted row", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs("a1").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))

		a, err := MustFor[models.Artist](db).Delete(ctx, &query.DeleteArgs{Where: query.WhereUnique{"id": "a1"}})
		require.NoError(t, err)
		assert.Equal(t, "muse", a.Slug)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(sql).WithArgs("a1").WillReturnRows(artistRows())

		_, err := MustFor[models.Artist](db).Delete(ctx, &query.DeleteArgs{Where: query.WhereUnique{"id": "a1"}})
		assert.True(t, runtime.IsNotFound(err))
	})

	t.Run("include loads relations before deleting", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."id" = \$1 FOR UPDATE$`).WithArgs("a1").
			WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
		mock.ExpectQuery(`FROM "songs" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
			WithArgs([]string{"a1"}).
			WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 0))
		mock.ExpectExec(`^DELETE FROM "artists" AS "t0" WHERE "t0"\."id" = \$1$`).WithArgs("a1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		a, err := MustFor[models.Artist](db).Delete(ctx, &query.DeleteArgs{
			Where:   query.WhereUnique{"id": "a1"},
			Include: query.Include{"songs": true},
		})
		require.NoError(t, err)
		require.Len(t, a.Songs, 1)
		assert.Equal(t, "Uprising", a.Songs[0].Title)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteMany(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`^DELETE FROM "sync_history" AS "t0" WHERE "t0"\."status" = \$1$`).WithArgs("failed").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := MustFor[models.SyncHistory](db).DeleteMany(context.Background(), &query.DeleteManyArgs{
		Where: query.Where{"status": "failed"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestCount(t *testing.T) {
	ctx := context.Background()

	t.Run("rows", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM \(SELECT "t0"\.\* FROM "songs" AS "t0" WHERE "t0"\."is_live" = \$1\) AS "t0"$`).
			WithArgs(true).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

		n, err := MustFor[models.Song](db).Count(ctx, &query.CountArgs{Where: query.Where{"isLive": true}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("fields", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\), COUNT\("t0"\."album"\) FROM`).
			WillReturnRows(pgxmock.NewRows([]string{"count", "count"}).AddRow(int64(7), int64(5)))

		counts, err := MustFor[models.Song](db).CountFields(ctx, &query.CountArgs{Select: []string{"_all", "album"}})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"_all": 7, "album": 5}, counts)
	})
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("computes the requested aggregates", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT COUNT\(\*\), AVG\("t0"\."popularity"\)::float8 FROM`).
			WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(int64(4), 61.5))

		res, err := MustFor[models.Song](db).Aggregate(ctx, &query.AggregateArgs{
			Count: []string{"_all"},
			Avg:   []string{"popularity"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Count["_all"])
		require.NotNil(t, res.Avg["popularity"])
		assert.InDelta(t, 61.5, *res.Avg["popularity"], 1e-9)
	})

	t.Run("empty set averages to nil", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectQuery(`^SELECT AVG`).
			WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(nil))

		res, err := MustFor[models.Song](db).Aggregate(ctx, &query.AggregateArgs{Avg: []string{"popularity"}})
		require.NoError(t, err)
		assert.Contains(t, res.Avg, "popularity")
		assert.Nil(t, res.Avg["popularity"])
	})

	t.Run("nothing selected", func(t *testing.T) {
		db, mock := newTestDB(t)
		res, err := MustFor[models.Song](db).Aggregate(ctx, &query.AggregateArgs{})
		require.NoError(t, err)
		assert.Equal(t, &query.AggregateResult{}, res)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGroupBy(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`^SELECT "t0"\."status", COUNT\(\*\) FROM "shows" AS "t0" GROUP BY "t0"\."status" ORDER BY "t0"\."status" ASC$`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("completed", int64(12)).
			AddRow("upcoming", int64(3)))

	groups, err := MustFor[models.Show](db).GroupBy(context.Background(), &query.GroupByArgs{
		By:      []string{"status"},
		Count:   []string{"_all"},
		OrderBy: query.OrderBy{query.By("status", query.Asc)},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "upcoming", groups[1].Fields["status"])
	assert.Equal(t, int64(3), groups[1].Count["_all"])
}
