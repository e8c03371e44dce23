package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Publisher is the slice of the event bus the API surface needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// DB is what handlers need from the pgx pool.
type DB interface {
	DBTX
	TxBeginner
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

// Deps is the application context handed to every handler at router
// construction. Built once at startup, never mutated afterwards.
type Deps struct {
	DB  DB
	Bus Publisher
	Log zerolog.Logger

	JWTSecret    string
	ServiceToken string
}
