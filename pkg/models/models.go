// Package models declares the entities of the setlist voting application.
// Struct tags are the single source of the schema: the registry, the query
// compiler and the migration generator all read them.
package models

import (
	"time"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Artist is a performing artist, linked to Spotify, Ticketmaster and
// setlist.fm.
type Artist struct {
	ID             string    `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	SpotifyID      *string   `po:"spotify_id,text,unique" json:"spotifyId"`
	TicketmasterID *string   `po:"ticketmaster_id,text,unique" json:"ticketmasterId"`
	SetlistfmMbid  *string   `po:"setlistfm_mbid,text,unique" json:"setlistfmMbid"`
	Name           string    `po:"name,text,notNull,index" json:"name"`
	Slug           string    `po:"slug,text,unique,notNull" json:"slug"`
	ImageURL       *string   `po:"image_url,text" json:"imageUrl"`
	Genres         []string  `po:"genres,text[],notNull,default('{}'),index" json:"genres"`
	Popularity     int       `po:"popularity,integer,notNull,default(0)" json:"popularity"`
	Followers      int       `po:"followers,integer,notNull,default(0)" json:"followers"`
	CreatedAt      time.Time `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt      time.Time `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Shows []*Show `po:"-,hasMany" json:"shows,omitempty"`
	Songs []*Song `po:"-,hasMany" json:"songs,omitempty"`
}

// Venue is a concert venue.
type Venue struct {
	ID             string    `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	TicketmasterID *string   `po:"ticketmaster_id,text,unique" json:"ticketmasterId"`
	SetlistfmID    *string   `po:"setlistfm_id,text,unique" json:"setlistfmId"`
	Name           string    `po:"name,text,notNull" json:"name"`
	Address        *string   `po:"address,text" json:"address"`
	City           string    `po:"city,text,notNull,index" json:"city"`
	State          *string   `po:"state,text" json:"state"`
	Country        string    `po:"country,text,notNull" json:"country"`
	PostalCode     *string   `po:"postal_code,text" json:"postalCode"`
	Latitude       *float64  `po:"latitude,double precision" json:"latitude"`
	Longitude      *float64  `po:"longitude,double precision" json:"longitude"`
	Capacity       *int      `po:"capacity,integer" json:"capacity"`
	CreatedAt      time.Time `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt      time.Time `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Shows []*Show `po:"-,hasMany" json:"shows,omitempty"`
}

// Show is one concert of an artist at a venue on a date.
type Show struct {
	ID             string     `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	ArtistID       string     `po:"artist_id,uuid,notNull,unique(artist_venue_date),fk(artists.id),onDelete(cascade)" json:"artistId"`
	VenueID        string     `po:"venue_id,uuid,notNull,unique(artist_venue_date),fk(venues.id),onDelete(cascade),index" json:"venueId"`
	TicketmasterID *string    `po:"ticketmaster_id,text,unique" json:"ticketmasterId"`
	SetlistfmID    *string    `po:"setlistfm_id,text,unique" json:"setlistfmId"`
	Name           string     `po:"name,text,notNull" json:"name"`
	Date           time.Time  `po:"date,date,notNull,unique(artist_venue_date),index" json:"date"`
	StartTime      *time.Time `po:"start_time,timestamptz" json:"startTime"`
	DoorsTime      *time.Time `po:"doors_time,timestamptz" json:"doorsTime"`
	Status         string     `po:"status,text,notNull,default('upcoming'),check(upcoming|ongoing|completed|cancelled)" json:"status"`
	TicketURL      *string    `po:"ticket_url,text" json:"ticketUrl"`
	ViewCount      int        `po:"view_count,integer,notNull,default(0)" json:"viewCount"`
	CreatedAt      time.Time  `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt      time.Time  `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Artist        *Artist          `po:"-,belongsTo" json:"artist,omitempty"`
	Venue         *Venue           `po:"-,belongsTo" json:"venue,omitempty"`
	Setlists      []*Setlist       `po:"-,hasMany" json:"setlists,omitempty"`
	Votes         []*Vote          `po:"-,hasMany" json:"votes,omitempty"`
	VoteAnalytics []*VoteAnalytics `po:"-,hasMany" json:"voteAnalytics,omitempty"`
}

// Song is a track in an artist's catalog.
type Song struct {
	ID            string      `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	ArtistID      string      `po:"artist_id,uuid,notNull,fk(artists.id),onDelete(cascade),index" json:"artistId"`
	SpotifyID     *string     `po:"spotify_id,text,unique" json:"spotifyId"`
	Title         string      `po:"title,text,notNull" json:"title"`
	Album         *string     `po:"album,text" json:"album"`
	DurationMs    *int        `po:"duration_ms,integer" json:"durationMs"`
	Popularity    int         `po:"popularity,integer,notNull,default(0)" json:"popularity"`
	PreviewURL    *string     `po:"preview_url,text" json:"previewUrl"`
	IsLive        bool        `po:"is_live,boolean,notNull,default(false)" json:"isLive"`
	AudioFeatures schema.JSON `po:"audio_features,jsonb" json:"audioFeatures"`
	CreatedAt     time.Time   `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt     time.Time   `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Artist       *Artist        `po:"-,belongsTo" json:"artist,omitempty"`
	SetlistSongs []*SetlistSong `po:"-,hasMany" json:"setlistSongs,omitempty"`
}

// Setlist is one ordered set (main set, encore) of a show.
type Setlist struct {
	ID         string    `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	ShowID     string    `po:"show_id,uuid,notNull,unique(show_order),fk(shows.id),onDelete(cascade)" json:"showId"`
	Name       string    `po:"name,text,notNull,default('Main Set')" json:"name"`
	OrderIndex int       `po:"order_index,integer,notNull,default(0),unique(show_order)" json:"orderIndex"`
	IsEncore   bool      `po:"is_encore,boolean,notNull,default(false)" json:"isEncore"`
	CreatedAt  time.Time `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt  time.Time `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Show         *Show          `po:"-,belongsTo" json:"show,omitempty"`
	SetlistSongs []*SetlistSong `po:"-,hasMany" json:"setlistSongs,omitempty"`
}

// SetlistSong places a song at a position in a setlist and carries its
// running vote count.
type SetlistSong struct {
	ID        string    `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	SetlistID string    `po:"setlist_id,uuid,notNull,unique(setlist_position),fk(setlists.id),onDelete(cascade)" json:"setlistId"`
	SongID    string    `po:"song_id,uuid,notNull,fk(songs.id),onDelete(cascade),index" json:"songId"`
	Position  int       `po:"position,integer,notNull,unique(setlist_position)" json:"position"`
	VoteCount int       `po:"vote_count,integer,notNull,default(0)" json:"voteCount"`
	Notes     *string   `po:"notes,text" json:"notes"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt time.Time `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Setlist *Setlist `po:"-,belongsTo" json:"setlist,omitempty"`
	Song    *Song    `po:"-,belongsTo" json:"song,omitempty"`
	Votes   []*Vote  `po:"-,hasMany" json:"votes,omitempty"`
}

// User is a fan who votes on setlists.
type User struct {
	ID          string      `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	Email       string      `po:"email,text,unique,notNull" json:"email"`
	DisplayName *string     `po:"display_name,text" json:"displayName"`
	SpotifyID   *string     `po:"spotify_id,text,unique" json:"spotifyId"`
	AvatarURL   *string     `po:"avatar_url,text" json:"avatarUrl"`
	Preferences schema.JSON `po:"preferences,jsonb" json:"preferences"`
	CreatedAt   time.Time   `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`
	UpdatedAt   time.Time   `po:"updated_at,timestamptz,notNull,default(now()),updatedAt" json:"updatedAt"`

	Votes         []*Vote          `po:"-,hasMany" json:"votes,omitempty"`
	VoteAnalytics []*VoteAnalytics `po:"-,hasMany" json:"voteAnalytics,omitempty"`
}

// Vote is one user's vote on a song in a setlist.
type Vote struct {
	ID            string    `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	UserID        string    `po:"user_id,uuid,notNull,unique(user_setlist_song),fk(users.id),onDelete(cascade)" json:"userId"`
	SetlistSongID string    `po:"setlist_song_id,uuid,notNull,unique(user_setlist_song),fk(setlist_songs.id),onDelete(cascade),index" json:"setlistSongId"`
	ShowID        string    `po:"show_id,uuid,notNull,fk(shows.id),onDelete(cascade),index" json:"showId"`
	VoteType      string    `po:"vote_type,text,notNull,default('up'),check(up|down)" json:"voteType"`
	CreatedAt     time.Time `po:"created_at,timestamptz,notNull,default(now())" json:"createdAt"`

	User        *User        `po:"-,belongsTo" json:"user,omitempty"`
	SetlistSong *SetlistSong `po:"-,belongsTo" json:"setlistSong,omitempty"`
	Show        *Show        `po:"-,belongsTo" json:"show,omitempty"`
}

// VoteAnalytics tracks a user's voting activity per show, for rate limits.
type VoteAnalytics struct {
	ID         string     `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	UserID     string     `po:"user_id,uuid,notNull,unique(user_show),fk(users.id),onDelete(cascade)" json:"userId"`
	ShowID     string     `po:"show_id,uuid,notNull,unique(user_show),fk(shows.id),onDelete(cascade),index" json:"showId"`
	DailyVotes int        `po:"daily_votes,integer,notNull,default(0)" json:"dailyVotes"`
	ShowVotes  int        `po:"show_votes,integer,notNull,default(0)" json:"showVotes"`
	LastVoteAt *time.Time `po:"last_vote_at,timestamptz" json:"lastVoteAt"`

	User *User `po:"-,belongsTo" json:"user,omitempty"`
	Show *Show `po:"-,belongsTo" json:"show,omitempty"`
}

// SyncHistory is the audit log of external data syncs.
type SyncHistory struct {
	ID             string     `po:"id,primaryKey,uuid,default(uuid())" json:"id"`
	SyncType       string     `po:"sync_type,text,notNull,index" json:"syncType"`
	EntityType     string     `po:"entity_type,text,notNull" json:"entityType"`
	EntityID       *string    `po:"entity_id,text" json:"entityId"`
	ExternalID     *string    `po:"external_id,text" json:"externalId"`
	Status         string     `po:"status,text,notNull,default('pending'),check(pending|running|completed|failed)" json:"status"`
	ErrorMessage   *string    `po:"error_message,text" json:"errorMessage"`
	ItemsProcessed int        `po:"items_processed,integer,notNull,default(0)" json:"itemsProcessed"`
	StartedAt      time.Time  `po:"started_at,timestamptz,notNull,default(now())" json:"startedAt"`
	CompletedAt    *time.Time `po:"completed_at,timestamptz" json:"completedAt"`
}
