package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBand struct {
	ID        string    `po:"id,primaryKey,uuid,default(uuid())"`
	Name      string    `po:"name,text,notNull"`
	Slug      string    `po:"slug,text,unique,notNull"`
	Genres    []string  `po:"genres,text[],notNull,default('{}')"`
	Followers int       `po:"followers,integer,notNull,default(0)"`
	ImageURL  *string   `po:"image_url,text"`
	Meta      JSON      `po:"meta,jsonb"`
	UpdatedAt time.Time `po:"updated_at,timestamptz,notNull,updatedAt"`

	Gigs []testGig `po:"-,hasMany,foreignKey(band_id)"`
}

type testGig struct {
	ID      string    `po:"id,primaryKey,uuid,default(uuid())"`
	BandID  string    `po:"band_id,uuid,notNull,unique(band_date),fk(test_bands.id),onDelete(cascade),index"`
	Date    time.Time `po:"date,date,notNull,unique(band_date)"`
	Status  string    `po:"status,text,notNull,default('upcoming'),check(upcoming|cancelled)"`
	Seats   *int64    `po:"seats,bigint"`
	Unused  string

	Band *testBand `po:"-,belongsTo,foreignKey(band_id)"`
}

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	t.Run("columns and keys", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(testBand{}))
		require.NoError(t, err)

		assert.Equal(t, "test_bands", table.Name)
		assert.Equal(t, "testBand", lowerFirst(table.ModelName))
		assert.Len(t, table.Columns, 8)
		require.NotNil(t, table.PrimaryKey)
		assert.Equal(t, []string{"id"}, table.PrimaryKey.Columns)

		id := table.GetColumn("id")
		require.NotNil(t, id)
		assert.Equal(t, "uuid", id.ClientDefault)
		assert.Nil(t, id.Default)
		assert.False(t, id.Nullable)

		slug := table.GetColumnByField("slug")
		require.NotNil(t, slug)
		assert.True(t, slug.Unique)

		genres := table.GetColumn("genres")
		require.NotNil(t, genres)
		assert.True(t, genres.IsList)
		assert.Equal(t, KindString, genres.Kind)
		require.NotNil(t, genres.Default)
		assert.Equal(t, "'{}'", *genres.Default)

		image := table.GetColumnByField("imageUrl")
		require.NotNil(t, image, "column names camelize to API field names")
		assert.True(t, image.Nullable)
		assert.Equal(t, "ImageURL", image.GoField)

		meta := table.GetColumn("meta")
		require.NotNil(t, meta)
		assert.True(t, meta.IsJSON())
		assert.True(t, meta.Nullable)

		updated := table.GetColumn("updated_at")
		require.NotNil(t, updated)
		assert.True(t, updated.UpdatedAt)
		assert.True(t, updated.HasDefault())
	})

	t.Run("compound unique, fk and check", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(&testGig{}))
		require.NoError(t, err)

		assert.Len(t, table.Columns, 5, "untagged and unexported fields are skipped")

		var unique *ConstraintMetadata
		for i := range table.Constraints {
			if table.Constraints[i].Type == UniqueConstraint {
				unique = &table.Constraints[i]
			}
		}
		require.NotNil(t, unique)
		assert.Equal(t, []string{"band_id", "date"}, unique.Columns)

		require.Len(t, table.ForeignKeys, 1)
		fk := table.ForeignKeys[0]
		assert.Equal(t, "test_bands", fk.ReferencedTable)
		assert.Equal(t, []string{"id"}, fk.ReferencedColumns)
		assert.Equal(t, Cascade, fk.OnDelete)
		assert.Equal(t, NoAction, fk.OnUpdate)

		assert.True(t, table.HasCheckConstraint("status"))
		assert.Equal(t, []string{"upcoming", "cancelled"}, table.GetColumn("status").EnumValues)

		require.Len(t, table.Indexes, 1)
		assert.Equal(t, "idx_test_gigs_band_id", table.Indexes[0].Name)

		seats := table.GetColumn("seats")
		assert.Equal(t, KindBigInt, seats.Kind)
		assert.True(t, seats.Nullable)
	})

	t.Run("relationships", func(t *testing.T) {
		band, err := parser.Parse(reflect.TypeOf(testBand{}))
		require.NoError(t, err)
		gigs := band.GetRelationship("gigs")
		require.NotNil(t, gigs)
		assert.Equal(t, HasMany, gigs.Type)
		assert.Equal(t, "testGig", lowerFirst(gigs.TargetModel))
		assert.Equal(t, "band_id", gigs.RemoteColumn())
		assert.Equal(t, "id", gigs.LocalColumn())

		gig, err := parser.Parse(reflect.TypeOf(testGig{}))
		require.NoError(t, err)
		owner := gig.GetRelationship("Band")
		require.NotNil(t, owner)
		assert.Equal(t, BelongsTo, owner.Type)
		assert.Equal(t, "band_id", owner.LocalColumn())
		assert.Equal(t, "id", owner.RemoteColumn())
	})

	t.Run("caches by type", func(t *testing.T) {
		a, err := parser.Parse(reflect.TypeOf(testBand{}))
		require.NoError(t, err)
		b, err := parser.Parse(reflect.TypeOf(&testBand{}))
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("rejects non-struct", func(t *testing.T) {
		_, err := parser.Parse(reflect.TypeOf(42))
		assert.Error(t, err)
	})
}

func TestTableMetadata_UniqueSelectors(t *testing.T) {
	parser := NewParser()
	table, err := parser.Parse(reflect.TypeOf(testGig{}))
	require.NoError(t, err)

	selectors := table.UniqueSelectors()
	require.Len(t, selectors, 2)
	assert.Equal(t, "id", selectors[0].Name)
	assert.False(t, selectors[0].Compound)
	assert.Equal(t, "bandId_date", selectors[1].Name)
	assert.Equal(t, []string{"bandId", "date"}, selectors[1].Fields)
	assert.True(t, selectors[1].Compound)

	_, ok := table.UniqueSelector("bandId_date")
	assert.True(t, ok)
	_, ok = table.UniqueSelector("date")
	assert.False(t, ok)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		name    string
		options map[string]string
		wantErr bool
	}{
		{tag: "id,primaryKey", name: "id", options: map[string]string{"primaryKey": ""}},
		{tag: "price,numeric(10,2),default(0)", name: "price", options: map[string]string{"numeric": "10,2", "default": "0"}},
		{tag: "id,default(uuid())", name: "id", options: map[string]string{"default": "uuid()"}},
		{tag: "tags,text[]", name: "tags", options: map[string]string{"text[]": ""}},
		{tag: "", wantErr: true},
		{tag: "x,default(broken", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			opts, err := parseTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, opts.Name)
			assert.Equal(t, tt.options, opts.Options)
		})
	}
}

func TestTagOptions_GetSQLType(t *testing.T) {
	tests := map[string]string{
		"a,varchar(255)":        "varchar(255)",
		"a,text[]":              "text[]",
		"a,double precision":    "double precision",
		"a,timestamptz,notNull": "timestamptz",
		"a,notNull":             "",
	}
	for tag, want := range tests {
		opts, err := parseTag(tag)
		require.NoError(t, err)
		assert.Equal(t, want, opts.GetSQLType(), tag)
	}
}

func TestRegisterTableName(t *testing.T) {
	RegisterTableName("SyncHistoryProbe", "sync_history_probe")
	assert.Equal(t, "sync_history_probe", TableNameFor("SyncHistoryProbe"))
	assert.Equal(t, "setlist_songs", TableNameFor("SetlistSong"))
	assert.Equal(t, "artistId", FieldNameFor("artist_id"))
	assert.Equal(t, "artist_id", ForeignKeyFor("Artist"))
}
