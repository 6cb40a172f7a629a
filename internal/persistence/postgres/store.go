// Package postgres is the sqlx implementation of the persistence ports.
// One Store serves every repo interface; queries keep filtering store-side
// so matching runs move market rows, not whole tables.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const defaultTimeout = 15 * time.Second

// Store implements persistence.Repository on PostgreSQL.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStore wraps an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, timeout: defaultTimeout}
}

func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}
