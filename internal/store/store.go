// Package store provides persistence for the session bearer token.
package store

import (
	"context"
	"fmt"

	"divtrack/internal/errors"
)

// TokenStore is a single durable slot holding the current bearer token.
// Writes are last-write-wins. Load reports ok=false when no token is stored.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (token string, ok bool, err error)
	Clear(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a token store backend.
type Options struct {
	Backend   string
	TokenPath string
	DBPath    string
}

// Open builds the token store for the configured backend. The returned
// close function releases backend resources and is never nil.
func Open(opts Options) (TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendFile, "":
		return NewFileTokenStore(opts.TokenPath), noop, nil
	case BackendSQLite:
		s, err := NewSQLiteTokenStore(opts.DBPath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendMemory:
		return NewMemoryTokenStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown token backend %q", errors.ErrConfigInvalid, opts.Backend)
	}
}
