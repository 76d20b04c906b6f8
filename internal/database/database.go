// Package database wraps a pgx connection pool behind a small Service
// interface so handlers and workers depend on a contract rather than a
// concrete pgxpool.Pool.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the contract every handler and repository depends on.
type Service interface {
	GetPool() *pgxpool.Pool
	Health(ctx context.Context) error
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against databaseURL and verifies it with a ping.
func New(databaseURL string) (Service, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &service{pool: pool}, nil
}

func (s *service) GetPool() *pgxpool.Pool { return s.pool }

func (s *service) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *service) Close() { s.pool.Close() }
