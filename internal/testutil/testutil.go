package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/vytor/recall/internal/db"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// A single connection keeps every statement on the same in-memory database.
func NewTestDB(t *testing.T) *sqlx.DB {
	conn, err := sqlx.Open("sqlite3", db.DSN(":memory:"))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(context.Background(), conn), "failed to apply migrations")
	return conn
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Clock is a settable time source for services under test.
type Clock struct {
	Now time.Time
}

// Func returns a function reading the clock's current value.
func (c *Clock) Func() func() time.Time {
	return func() time.Time { return c.Now }
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.Now = c.Now.Add(d)
}
