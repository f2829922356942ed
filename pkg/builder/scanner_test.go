package builder

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestScanAll(t *testing.T) {
	reg := testRegistry(t)
	song := table(t, reg, "Song")
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "artist_id", "title", "album", "popularity", "is_live", "audio_features", "created_at", "extra"}).
		AddRow("s1", "a1", "Uprising", strPtr("The Resistance"), 80, false, []byte(`{"tempo":128}`), created, "ignored").
		AddRow("s2", "a1", "Hysteria", nil, 75, true, nil, created, "ignored")

	items, err := ScanAll(rows.Kind(), song)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0].Interface().(*models.Song)
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "Uprising", first.Title)
	require.NotNil(t, first.Album)
	assert.Equal(t, "The Resistance", *first.Album)
	assert.Equal(t, 80, first.Popularity)
	assert.JSONEq(t, `{"tempo":128}`, string(first.AudioFeatures))
	assert.Equal(t, created, first.CreatedAt)

	second := items[1].Interface().(*models.Song)
	assert.Nil(t, second.Album)
	assert.True(t, second.IsLive)
	assert.Nil(t, second.AudioFeatures)
}

func TestScanMaps(t *testing.T) {
	id := uuid.MustParse("0b5e5f7c-7d1e-4c57-9d5e-2a4a8f9b6c01")
	rows := pgxmock.NewRows([]string{"id", "name", "votes"}).
		AddRow([16]byte(id), "Muse", int64(12)).
		AddRow(id, "Blur", int64(3))

	out, err := ScanMaps(rows.Kind())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": id.String(), "name": "Muse", "votes": int64(12)},
		{"id": id.String(), "name": "Blur", "votes": int64(3)},
	}, out)
}

func TestScanMaps_Empty(t *testing.T) {
	out, err := ScanMaps(pgxmock.NewRows([]string{"id"}).Kind())
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestScanValues(t *testing.T) {
	rows := pgxmock.NewRows([]string{"count", "max"}).AddRow(int64(4), "Uprising")
	out, err := ScanValues(rows.Kind())
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(4), "Uprising"}}, out)
}

func TestRelationHelpers(t *testing.T) {
	reg := testRegistry(t)
	artistT := table(t, reg, "Artist")
	showT := table(t, reg, "Show")

	artists := []reflect.Value{
		reflect.ValueOf(&models.Artist{ID: "a1", Name: "Muse"}),
		reflect.ValueOf(&models.Artist{ID: "a2", Name: "Blur"}),
		reflect.ValueOf(&models.Artist{Name: "unsaved"}),
	}
	shows := []reflect.Value{
		reflect.ValueOf(&models.Show{ID: "s1", ArtistID: "a1"}),
		reflect.ValueOf(&models.Show{ID: "s2", ArtistID: "a1"}),
		reflect.ValueOf(&models.Show{ID: "s3", ArtistID: "a2"}),
	}

	t.Run("FieldValue", func(t *testing.T) {
		v, ok := FieldValue(artists[0], "ID")
		assert.True(t, ok)
		assert.Equal(t, "a1", v)

		_, ok = FieldValue(artists[2], "ID")
		assert.False(t, ok, "zero values are absent")

		_, ok = FieldValue(artists[0], "ImageURL")
		assert.False(t, ok, "nil pointers are absent")

		_, ok = FieldValue(artists[0], "Missing")
		assert.False(t, ok)
	})

	t.Run("IndexBy", func(t *testing.T) {
		idx := IndexBy(shows, showT.Field("artistId"))
		assert.Equal(t, []any{"a1", "a2"}, idx.Keys)
		assert.Equal(t, []int{0, 1}, idx.Rows["a1"])
		assert.Equal(t, []int{2}, idx.Rows["a2"])

		idx = IndexBy(artists, artistT.Field("id"))
		assert.Len(t, idx.Keys, 2)
	})

	t.Run("AssignRelation to-many", func(t *testing.T) {
		rel := artistT.Relation("shows")
		require.NotNil(t, rel)
		require.NoError(t, AssignRelation(artists[0], rel, shows[:2]))
		require.NoError(t, AssignRelation(artists[1], rel, nil))

		a := artists[0].Interface().(*models.Artist)
		require.Len(t, a.Shows, 2)
		assert.Equal(t, "s2", a.Shows[1].ID)

		b := artists[1].Interface().(*models.Artist)
		assert.NotNil(t, b.Shows)
		assert.Empty(t, b.Shows)
	})

	t.Run("AssignRelation to-one", func(t *testing.T) {
		rel := showT.Relation("artist")
		require.NotNil(t, rel)
		require.NoError(t, AssignRelation(shows[2], rel, artists[1:2]))
		require.NoError(t, AssignRelation(shows[0], rel, nil))

		assert.Equal(t, "Blur", shows[2].Interface().(*models.Show).Artist.Name)
		assert.Nil(t, shows[0].Interface().(*models.Show).Artist)
	})

	t.Run("ZeroFields", func(t *testing.T) {
		a := &models.Artist{ID: "a9", Name: "Muse", Slug: "muse", Popularity: 90, ImageURL: strPtr("x")}
		ZeroFields(reflect.ValueOf(a), artistT, map[string]bool{"id": true, "name": true})
		assert.Equal(t, models.Artist{ID: "a9", Name: "Muse"}, *a)
	})
}
