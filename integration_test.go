//go:build integration

package setlistdb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marshallshelly/setlistdb/pkg/migration"
	"github.com/marshallshelly/setlistdb/pkg/orm"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/setlist"
)

// setupTestDB creates a PostgreSQL container and returns its connection string.
func setupTestDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("setlist"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}
	return connStr
}

// migrate writes the full schema migration to a temp dir and applies it.
func migrate(t *testing.T, conn *runtime.DB) ([]migration.Migration, *migration.Executor) {
	t.Helper()
	ctx := context.Background()

	reg, err := setlist.Registry()
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	gen := migration.NewGenerator(filepath.Join(t.TempDir(), "migrations"))
	if _, err := gen.Generate("create_setlist_schema", migration.FullSchema(reg.All())); err != nil {
		t.Fatalf("Failed to generate migration: %v", err)
	}
	migrations, err := gen.LoadAll()
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}

	exec := migration.NewExecutor(conn)
	applied, err := exec.Up(ctx, migrations, false)
	if err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("Expected 1 applied migration, got %d", len(applied))
	}
	return migrations, exec
}

func TestIntegration_Migrations(t *testing.T) {
	ctx := context.Background()
	conn, err := runtime.ConnectWithURL(ctx, setupTestDB(t))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	migrations, exec := migrate(t, conn)

	t.Run("introspected schema matches the models", func(t *testing.T) {
		reg, _ := setlist.Registry()
		current, err := migration.NewIntrospector(conn).IntrospectSchema(ctx)
		if err != nil {
			t.Fatalf("Failed to introspect: %v", err)
		}
		if len(current) != 10 {
			t.Errorf("Expected 10 tables, got %d", len(current))
		}
		if diff := migration.NewDiffer().Compare(reg.All(), current); diff.HasChanges() {
			t.Errorf("Expected no differences, got %+v", diff)
		}
	})

	t.Run("up is idempotent", func(t *testing.T) {
		applied, err := exec.Up(ctx, migrations, false)
		if err != nil {
			t.Fatalf("Failed to re-run up: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("Expected nothing applied, got %v", applied)
		}
	})

	t.Run("down drops every table", func(t *testing.T) {
		rolledBack, err := exec.Down(ctx, migrations, 1, false)
		if err != nil {
			t.Fatalf("Failed to roll back: %v", err)
		}
		if len(rolledBack) != 1 {
			t.Fatalf("Expected 1 rolled back migration, got %d", len(rolledBack))
		}
		current, err := migration.NewIntrospector(conn).IntrospectSchema(ctx)
		if err != nil {
			t.Fatalf("Failed to introspect: %v", err)
		}
		if len(current) != 0 {
			t.Errorf("Expected no tables, got %d", len(current))
		}
	})
}

func TestIntegration_Client(t *testing.T) {
	ctx := context.Background()
	conn, err := runtime.ConnectWithURL(ctx, setupTestDB(t))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	migrate(t, conn)

	c, err := setlist.New(conn)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	artist, err := c.Artists.Create(ctx, &query.CreateArgs{Data: query.Data{
		"name":   "Radiohead",
		"slug":   "radiohead",
		"genres": []string{"rock", "alternative"},
	}})
	if err != nil {
		t.Fatalf("Failed to create artist: %v", err)
	}
	if artist.ID == "" || artist.Popularity != 0 {
		t.Fatalf("Expected generated id and default popularity, got %+v", artist)
	}

	t.Run("duplicate slug is a unique violation", func(t *testing.T) {
		_, err := c.Artists.Create(ctx, &query.CreateArgs{Data: query.Data{"name": "Radiohead", "slug": "radiohead"}})
		if !runtime.IsUniqueViolation(err) {
			t.Fatalf("Expected unique violation, got %v", err)
		}
		if code := runtime.ErrorCode(err); code != runtime.CodeUniqueViolation {
			t.Errorf("Expected %s, got %s", runtime.CodeUniqueViolation, code)
		}
	})

	t.Run("upsert updates the existing row", func(t *testing.T) {
		a, err := c.Artists.Upsert(ctx, &query.UpsertArgs{
			Where:  query.WhereUnique{"slug": "radiohead"},
			Create: query.Data{"name": "Radiohead", "slug": "radiohead"},
			Update: query.Data{"followers": query.Increment(10)},
		})
		if err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
		if a.ID != artist.ID || a.Followers != 10 {
			t.Errorf("Expected followers 10 on %s, got %+v", artist.ID, a)
		}
	})

	venue, err := c.Venues.Create(ctx, &query.CreateArgs{Data: query.Data{
		"name": "O2 Arena", "city": "London", "country": "GB",
	}})
	if err != nil {
		t.Fatalf("Failed to create venue: %v", err)
	}

	date := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	show, err := c.Shows.Create(ctx, &query.CreateArgs{
		Data: query.Data{
			"name":     "Radiohead Live",
			"date":     date,
			"artist":   query.Connect(query.WhereUnique{"id": artist.ID}),
			"venue":    query.Connect(query.WhereUnique{"id": venue.ID}),
			"setlists": query.CreateRelated(query.Data{"name": "Main Set"}),
		},
		Include: query.Include{"setlists": true, "artist": true},
	})
	if err != nil {
		t.Fatalf("Failed to create show: %v", err)
	}
	if show.Status != "upcoming" || len(show.Setlists) != 1 || show.Artist == nil || show.Artist.Slug != "radiohead" {
		t.Fatalf("Unexpected show %+v", show)
	}
	setlistID := show.Setlists[0].ID

	t.Run("compound unique selector", func(t *testing.T) {
		s, err := c.Shows.FindUniqueOrThrow(ctx, &query.FindUniqueArgs{Where: query.WhereUnique{
			"artistId_venueId_date": map[string]any{"artistId": artist.ID, "venueId": venue.ID, "date": date},
		}})
		if err != nil {
			t.Fatalf("Failed to find show: %v", err)
		}
		if s.ID != show.ID {
			t.Errorf("Expected %s, got %s", show.ID, s.ID)
		}
	})

	t.Run("createMany skips duplicates", func(t *testing.T) {
		n, err := c.Songs.CreateMany(ctx, &query.CreateManyArgs{
			Data: []query.Data{
				{"artistId": artist.ID, "title": "Airbag", "spotifyId": "sp1", "popularity": 60},
				{"artistId": artist.ID, "title": "Creep", "spotifyId": "sp2", "popularity": 90},
				{"artistId": artist.ID, "title": "Airbag (dup)", "spotifyId": "sp1"},
			},
			SkipDuplicates: true,
		})
		if err != nil {
			t.Fatalf("Failed to create songs: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 songs created, got %d", n)
		}
	})

	t.Run("findMany with relation filter and order", func(t *testing.T) {
		artists, err := c.Artists.FindMany(ctx, &query.FindManyArgs{
			Where: query.Where{
				"genres": map[string]any{"has": "rock"},
				"songs":  map[string]any{"some": map[string]any{"popularity": map[string]any{"gt": 80}}},
			},
			Include: query.Include{"songs": &query.FindManyArgs{OrderBy: query.OrderBy{query.By("popularity", query.Desc)}}},
		})
		if err != nil {
			t.Fatalf("Failed to find artists: %v", err)
		}
		if len(artists) != 1 || len(artists[0].Songs) != 2 || artists[0].Songs[0].Title != "Creep" {
			t.Fatalf("Unexpected artists %+v", artists)
		}
	})

	t.Run("vote in a transaction", func(t *testing.T) {
		user, err := c.Users.Create(ctx, &query.CreateArgs{Data: query.Data{"email": "fan@example.com"}})
		if err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		song, err := c.Songs.FindFirstOrThrow(ctx, &query.FindFirstArgs{Where: query.Where{"title": "Creep"}})
		if err != nil {
			t.Fatalf("Failed to find song: %v", err)
		}
		ss, err := c.SetlistSongs.Create(ctx, &query.CreateArgs{Data: query.Data{
			"setlistId": setlistID, "songId": song.ID, "position": 1,
		}})
		if err != nil {
			t.Fatalf("Failed to create setlist song: %v", err)
		}

		vote := func(ctx context.Context, tx *setlist.Client) error {
			if _, err := tx.Votes.Create(ctx, &query.CreateArgs{Data: query.Data{
				"userId": user.ID, "setlistSongId": ss.ID, "showId": show.ID,
			}}); err != nil {
				return err
			}
			_, err := tx.SetlistSongs.Update(ctx, &query.UpdateArgs{
				Where: query.WhereUnique{"id": ss.ID},
				Data:  query.Data{"voteCount": query.Increment(1)},
			})
			return err
		}
		if err := c.Transaction(ctx, vote, orm.WithIsolation(orm.Serializable)); err != nil {
			t.Fatalf("Failed to vote: %v", err)
		}
		// A second vote by the same user violates the compound unique and
		// rolls back the increment.
		if err := c.Transaction(ctx, vote); !runtime.IsUniqueViolation(err) {
			t.Fatalf("Expected unique violation, got %v", err)
		}

		got, err := c.SetlistSongs.FindUniqueOrThrow(ctx, &query.FindUniqueArgs{Where: query.WhereUnique{"id": ss.ID}})
		if err != nil {
			t.Fatalf("Failed to reload setlist song: %v", err)
		}
		if got.VoteCount != 1 {
			t.Errorf("Expected 1 vote, got %d", got.VoteCount)
		}
	})

	t.Run("aggregate and groupBy", func(t *testing.T) {
		agg, err := c.Songs.Aggregate(ctx, &query.AggregateArgs{
			Count: []string{query.CountAll},
			Avg:   []string{"popularity"},
			Max:   []string{"popularity"},
		})
		if err != nil {
			t.Fatalf("Failed to aggregate: %v", err)
		}
		if agg.Count[query.CountAll] != 2 || agg.Avg["popularity"] == nil || *agg.Avg["popularity"] != 75 {
			t.Errorf("Unexpected aggregate %+v", agg)
		}

		groups, err := c.Shows.GroupBy(ctx, &query.GroupByArgs{By: []string{"status"}, Count: []string{query.CountAll}})
		if err != nil {
			t.Fatalf("Failed to group: %v", err)
		}
		if len(groups) != 1 || groups[0].Fields["status"] != "upcoming" {
			t.Errorf("Unexpected groups %+v", groups)
		}
	})

	t.Run("batch and raw queries", func(t *testing.T) {
		results, err := c.Batch(ctx,
			func(ctx context.Context, tx *setlist.Client) (any, error) {
				return tx.Shows.UpdateMany(ctx, &query.UpdateManyArgs{Data: query.Data{"viewCount": query.Increment(5)}})
			},
			func(ctx context.Context, tx *setlist.Client) (any, error) {
				return tx.Shows.Count(ctx, &query.CountArgs{Where: query.Where{"viewCount": 5}})
			},
		)
		if err != nil {
			t.Fatalf("Failed to run batch: %v", err)
		}
		if results[0] != int64(1) || results[1] != int64(1) {
			t.Errorf("Unexpected batch results %v", results)
		}

		rows, err := c.QueryRaw(ctx, "SELECT slug FROM artists WHERE followers > $1", 5)
		if err != nil {
			t.Fatalf("Failed to query raw: %v", err)
		}
		if len(rows) != 1 || rows[0]["slug"] != "radiohead" {
			t.Errorf("Unexpected rows %v", rows)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		if _, err := c.Artists.Delete(ctx, &query.DeleteArgs{Where: query.WhereUnique{"slug": "radiohead"}}); err != nil {
			t.Fatalf("Failed to delete artist: %v", err)
		}
		n, err := c.Votes.Count(ctx, &query.CountArgs{})
		if err != nil {
			t.Fatalf("Failed to count votes: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected votes to cascade, got %d", n)
		}
		_, err = c.Artists.FindUniqueOrThrow(ctx, &query.FindUniqueArgs{Where: query.WhereUnique{"slug": "radiohead"}})
		if !runtime.IsNotFound(err) {
			t.Errorf("Expected not found, got %v", err)
		}
	})

	muse, err := c.Artists.Create(ctx, &query.CreateArgs{Data: query.Data{"name": "Muse", "slug": "muse"}})
	if err != nil {
		t.Fatalf("Failed to create artist: %v", err)
	}

	t.Run("createMany without skipDuplicates is all or nothing", func(t *testing.T) {
		if _, err := c.Songs.Create(ctx, &query.CreateArgs{Data: query.Data{
			"artistId": muse.ID, "title": "Uprising", "spotifyId": "m1",
		}}); err != nil {
			t.Fatalf("Failed to create song: %v", err)
		}
		_, err := c.Songs.CreateMany(ctx, &query.CreateManyArgs{Data: []query.Data{
			{"artistId": muse.ID, "title": "Hysteria", "spotifyId": "m2"},
			{"artistId": muse.ID, "title": "Uprising (live)", "spotifyId": "m1"},
		}})
		if !runtime.IsUniqueViolation(err) {
			t.Fatalf("Expected unique violation, got %v", err)
		}
		n, err := c.Songs.Count(ctx, &query.CountArgs{Where: query.Where{"artistId": muse.ID}})
		if err != nil {
			t.Fatalf("Failed to count songs: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected the batch to be rolled back, got %d songs", n)
		}
	})

	t.Run("empty update keeps updatedAt", func(t *testing.T) {
		before, err := c.Artists.FindUniqueOrThrow(ctx, &query.FindUniqueArgs{Where: query.WhereUnique{"slug": "muse"}})
		if err != nil {
			t.Fatalf("Failed to find artist: %v", err)
		}
		after, err := c.Artists.Update(ctx, &query.UpdateArgs{
			Where: query.WhereUnique{"slug": "muse"},
			Data:  query.Data{},
		})
		if err != nil {
			t.Fatalf("Failed to update artist: %v", err)
		}
		if !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Errorf("Expected updatedAt %v, got %v", before.UpdatedAt, after.UpdatedAt)
		}
	})

	t.Run("JSON null filters", func(t *testing.T) {
		_, err := c.Songs.CreateMany(ctx, &query.CreateManyArgs{Data: []query.Data{
			{"artistId": muse.ID, "title": "Madness"},
			{"artistId": muse.ID, "title": "Dead Inside", "audioFeatures": query.JsonNull},
			{"artistId": muse.ID, "title": "Knights of Cydonia", "audioFeatures": map[string]any{"energy": 0.9}},
		}})
		if err != nil {
			t.Fatalf("Failed to create songs: %v", err)
		}

		titles := func(filter any) []string {
			t.Helper()
			songs, err := c.Songs.FindMany(ctx, &query.FindManyArgs{
				Where:   query.Where{"artistId": muse.ID, "title": map[string]any{"not": "Uprising"}, "audioFeatures": filter},
				OrderBy: query.OrderBy{query.By("title", query.Asc)},
			})
			if err != nil {
				t.Fatalf("Failed to find songs: %v", err)
			}
			out := make([]string, len(songs))
			for i, s := range songs {
				out[i] = s.Title
			}
			return out
		}

		tests := []struct {
			name   string
			filter any
			want   []string
		}{
			{"DbNull", query.DbNull, []string{"Madness"}},
			{"JsonNull", query.JsonNull, []string{"Dead Inside"}},
			{"AnyNull", query.AnyNull, []string{"Dead Inside", "Madness"}},
			{"not DbNull", query.JSONNot(query.DbNull), []string{"Dead Inside", "Knights of Cydonia"}},
		}
		for _, tt := range tests {
			got := titles(tt.filter)
			if len(got) != len(tt.want) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
				continue
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
					break
				}
			}
		}
	})
}
