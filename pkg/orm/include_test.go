package orm

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/models"
	"github.com/marshallshelly/setlistdb/pkg/query"
)

func TestInclude_HasManyBatched(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`FROM "artists" AS "t0"$`).
		WillReturnRows(artistRows().
			AddRow("a1", "Muse", "muse", 0).
			AddRow("a2", "Blur", "blur", 0))
	mock.ExpectQuery(`FROM "shows" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
		WithArgs([]string{"a1", "a2"}).
		WillReturnRows(showRows().
			AddRow("s1", "a1", "v1", "Wembley", "completed").
			AddRow("s2", "a1", "v2", "Bercy", "upcoming"))

	artists, err := MustFor[models.Artist](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"shows": true},
	})
	require.NoError(t, err)
	require.Len(t, artists, 2)
	require.Len(t, artists[0].Shows, 2)
	assert.Equal(t, "Bercy", artists[0].Shows[1].Name)
	assert.NotNil(t, artists[1].Shows)
	assert.Empty(t, artists[1].Shows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInclude_BelongsTo(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`FROM "shows" AS "t0"$`).
		WillReturnRows(showRows().
			AddRow("s1", "a1", "v1", "Wembley", "completed").
			AddRow("s2", "a1", "v2", "Bercy", "upcoming"))
	mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."id" = ANY\(\$1\)$`).
		WithArgs([]string{"a1"}).
		WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))

	shows, err := MustFor[models.Show](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"artist": true},
	})
	require.NoError(t, err)
	require.Len(t, shows, 2)
	for _, s := range shows {
		require.NotNil(t, s.Artist)
		assert.Equal(t, "Muse", s.Artist.Name)
	}
}

func TestInclude_PaginatedPerParent(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`FROM "artists" AS "t0"$`).
		WillReturnRows(artistRows().
			AddRow("a1", "Muse", "muse", 0).
			AddRow("a2", "Blur", "blur", 0))
	for _, id := range []string{"a1", "a2"} {
		mock.ExpectQuery(`FROM "songs" AS "t0" WHERE "t0"\."artist_id" = \$1 ORDER BY "t0"\."popularity" DESC LIMIT 1$`).
			WithArgs(id).
			WillReturnRows(songRows().AddRow("s-"+id, id, "Top "+id, 90))
	}

	artists, err := MustFor[models.Artist](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"songs": &query.FindManyArgs{
			OrderBy: query.OrderBy{query.By("popularity", query.Desc)},
			Take:    query.Int(1),
		}},
	})
	require.NoError(t, err)
	require.Len(t, artists, 2)
	require.Len(t, artists[1].Songs, 1)
	assert.Equal(t, "Top a2", artists[1].Songs[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInclude_NestedSelect(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`FROM "artists" AS "t0" WHERE "t0"\."slug" = \$1$`).WithArgs("muse").
		WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
	mock.ExpectQuery(`FROM "songs" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
		WithArgs([]string{"a1"}).
		WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 80))

	a, err := MustFor[models.Artist](db).FindUnique(context.Background(), &query.FindUniqueArgs{
		Where: query.WhereUnique{"slug": "muse"},
		Select: query.Select{
			"name":  true,
			"songs": map[string]any{"select": map[string]any{"title": true}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Muse", a.Name)
	assert.Empty(t, a.ID, "keys are cleared after loading when not selected")
	require.Len(t, a.Songs, 1)
	assert.Equal(t, "Uprising", a.Songs[0].Title)
	assert.Zero(t, a.Songs[0].Popularity)
}

func TestInclude_ConcurrentLoads(t *testing.T) {
	db, mock := newTestDB(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`FROM "artists" AS "t0"$`).
		WillReturnRows(artistRows().AddRow("a1", "Muse", "muse", 0))
	mock.ExpectQuery(`FROM "shows" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
		WithArgs([]string{"a1"}).
		WillReturnRows(showRows())
	mock.ExpectQuery(`FROM "songs" AS "t0" WHERE "t0"\."artist_id" = ANY\(\$1\)$`).
		WithArgs([]string{"a1"}).
		WillReturnRows(songRows().AddRow("s1", "a1", "Uprising", 80))

	artists, err := MustFor[models.Artist](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"shows": true, "songs": true},
	})
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Empty(t, artists[0].Shows)
	assert.Len(t, artists[0].Songs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInclude_UnknownRelation(t *testing.T) {
	db, _ := newTestDB(t)
	_, err := MustFor[models.Artist](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"albums": true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include.albums")
}

func TestInclude_SkipsEmptyKeys(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`FROM "artists" AS "t0"$`).WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Muse"))

	artists, err := MustFor[models.Artist](db).FindMany(context.Background(), &query.FindManyArgs{
		Include: query.Include{"shows": true},
	})
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Empty(t, artists[0].Shows)
	require.NoError(t, mock.ExpectationsWereMet())
}
