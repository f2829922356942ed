// Package setlist is the application client for the setlist voting schema:
// one typed accessor per entity plus transactions and raw SQL.
package setlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/marshallshelly/setlistdb/pkg/models"
	"github.com/marshallshelly/setlistdb/pkg/orm"
	"github.com/marshallshelly/setlistdb/pkg/registry"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

var defaultRegistry = sync.OnceValues(models.NewRegistry)

// Client exposes the operation family of every entity. A pool-backed Client
// is safe for concurrent use; the Client passed to a Transaction callback is
// not.
type Client struct {
	conn *runtime.DB // nil for transaction-scoped clients
	db   *orm.DB

	Artists       *orm.Delegate[models.Artist]
	Venues        *orm.Delegate[models.Venue]
	Shows         *orm.Delegate[models.Show]
	Songs         *orm.Delegate[models.Song]
	Setlists      *orm.Delegate[models.Setlist]
	SetlistSongs  *orm.Delegate[models.SetlistSong]
	Users         *orm.Delegate[models.User]
	Votes         *orm.Delegate[models.Vote]
	VoteAnalytics *orm.Delegate[models.VoteAnalytics]
	SyncHistory   *orm.Delegate[models.SyncHistory]
}

// Registry returns the registry holding every setlist model.
func Registry() (*registry.Registry, error) {
	return defaultRegistry()
}

// Connect opens a pool described by cfg and returns a client over it.
func Connect(ctx context.Context, cfg *runtime.Config, opts ...orm.Option) (*Client, error) {
	conn, err := runtime.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := New(conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New returns a client over an open connection. The setlist model registry is
// used unless opts set another one.
func New(conn *runtime.DB, opts ...orm.Option) (*Client, error) {
	reg, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	opts = append([]orm.Option{orm.WithRegistry(reg)}, opts...)
	c, err := bind(orm.New(conn, opts...))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func bind(db *orm.DB) (*Client, error) {
	c := &Client{db: db}
	var err error
	if c.Artists, err = orm.For[models.Artist](db); err != nil {
		return nil, fmt.Errorf("bind Artist: %w", err)
	}
	if c.Venues, err = orm.For[models.Venue](db); err != nil {
		return nil, fmt.Errorf("bind Venue: %w", err)
	}
	if c.Shows, err = orm.For[models.Show](db); err != nil {
		return nil, fmt.Errorf("bind Show: %w", err)
	}
	if c.Songs, err = orm.For[models.Song](db); err != nil {
		return nil, fmt.Errorf("bind Song: %w", err)
	}
	if c.Setlists, err = orm.For[models.Setlist](db); err != nil {
		return nil, fmt.Errorf("bind Setlist: %w", err)
	}
	if c.SetlistSongs, err = orm.For[models.SetlistSong](db); err != nil {
		return nil, fmt.Errorf("bind SetlistSong: %w", err)
	}
	if c.Users, err = orm.For[models.User](db); err != nil {
		return nil, fmt.Errorf("bind User: %w", err)
	}
	if c.Votes, err = orm.For[models.Vote](db); err != nil {
		return nil, fmt.Errorf("bind Vote: %w", err)
	}
	if c.VoteAnalytics, err = orm.For[models.VoteAnalytics](db); err != nil {
		return nil, fmt.Errorf("bind VoteAnalytics: %w", err)
	}
	if c.SyncHistory, err = orm.For[models.SyncHistory](db); err != nil {
		return nil, fmt.Errorf("bind SyncHistory: %w", err)
	}
	return c, nil
}

// mustBind binds a transaction-scoped DB. Its registry already bound every
// model, so errors are impossible.
func mustBind(db *orm.DB) *Client {
	c, err := bind(db)
	if err != nil {
		panic(err)
	}
	return c
}

// DB returns the untyped client underneath.
func (c *Client) DB() *orm.DB {
	return c.db
}

// Model returns the dynamic accessor for a model name such as "Artist".
func (c *Client) Model(name string) (*orm.Model, error) {
	return c.db.Model(name)
}

// InTransaction reports whether the client is scoped to a transaction.
func (c *Client) InTransaction() bool {
	return c.db.InTransaction()
}

// Close closes the pool. It is a no-op on transaction-scoped clients.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Transaction runs fn with a transaction-scoped client. The transaction
// commits when fn returns nil and rolls back otherwise.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Client) error, opts ...orm.TxOption) error {
	return c.db.Transaction(ctx, func(ctx context.Context, tx *orm.DB) error {
		return fn(ctx, mustBind(tx))
	}, opts...)
}

// BatchOp is one deferred operation of a batch.
type BatchOp func(ctx context.Context, tx *Client) (any, error)

// Batch runs ops in order in one transaction and returns their results in
// order. Any error rolls back every operation.
func (c *Client) Batch(ctx context.Context, ops ...BatchOp) ([]any, error) {
	wrapped := make([]orm.BatchOp, len(ops))
	for i, op := range ops {
		wrapped[i] = func(ctx context.Context, tx *orm.DB) (any, error) {
			return op(ctx, mustBind(tx))
		}
	}
	return c.db.Batch(ctx, wrapped...)
}

// QueryRaw runs a parameterized query and returns its rows keyed by column
// name.
func (c *Client) QueryRaw(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	return c.db.QueryRaw(ctx, sql, args...)
}

// ExecuteRaw runs a parameterized statement and returns the rows affected.
func (c *Client) ExecuteRaw(ctx context.Context, sql string, args ...any) (int64, error) {
	return c.db.ExecuteRaw(ctx, sql, args...)
}
