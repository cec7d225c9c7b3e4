package store

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	pgOnce sync.Once
	pgPool *pgxpool.Pool
)

// InitPg connects the process-wide pool (singleton).
func InitPg(databaseURL string) error {
	var initErr error
	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			initErr = errors.Wrap(err, "connect postgres")
			return
		}
		if err := pool.Ping(ctx); err != nil {
			initErr = errors.Wrap(err, "ping postgres")
			return
		}
		pgPool = pool
	})
	return initErr
}

func Pool() *pgxpool.Pool {
	if pgPool == nil {
		panic("postgres not initialized, call InitPg first")
	}
	return pgPool
}

func ClosePg() {
	if pgPool != nil {
		pgPool.Close()
	}
}
