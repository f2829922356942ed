package models

import (
	"github.com/marshallshelly/setlistdb/pkg/registry"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

func init() {
	// Singular table names, which inflection would pluralize.
	schema.RegisterTableName("VoteAnalytics", "vote_analytics")
	schema.RegisterTableName("SyncHistory", "sync_history")
}

// All returns a zero value of every model, parents before children.
func All() []any {
	return []any{
		Artist{},
		Venue{},
		Show{},
		Song{},
		Setlist{},
		SetlistSong{},
		User{},
		Vote{},
		VoteAnalytics{},
		SyncHistory{},
	}
}

// Register adds every model to reg and checks that all relations resolve.
func Register(reg *registry.Registry) error {
	for _, m := range All() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return reg.Validate()
}

// NewRegistry returns a registry holding every model.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry() *registry.Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return reg
}
