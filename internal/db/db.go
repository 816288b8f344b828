package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnavailable means the database could not be reached or no
	// connection could be acquired in time.
	ErrUnavailable = errors.New("database unavailable")
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRequestClosed is returned when a request is no longer open.
	ErrRequestClosed = errors.New("request is closed")
	// ErrOfferResolved is returned when an offer was already accepted or rejected.
	ErrOfferResolved = errors.New("offer already resolved")
	// ErrInvalidValue is returned when a value violates a column check or range.
	ErrInvalidValue = errors.New("invalid value")
)

// Options configures pool construction and acquisition.
type Options struct {
	URL            string
	MaxConns       int32
	Retries        int
	Backoff        time.Duration
	AcquireTimeout time.Duration

	// Sleep waits between connection attempts. Defaults to a context aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Gateway owns the connection pool. Every entity operation acquires a
// connection, runs, and releases it on every exit path.
type Gateway struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	closed         atomic.Bool
}

// openPool builds and verifies a pool. Replaced in tests.
var openPool = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Connect builds the pool, retrying with exponential backoff. After
// opts.Retries failed attempts it returns ErrUnavailable wrapping the last error.
func Connect(ctx context.Context, opts Options) (*Gateway, error) {
	pc, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		pc.MaxConns = opts.MaxConns
	}
	if opts.Retries < 1 {
		opts.Retries = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}

	var pool *pgxpool.Pool
	err = Retry(ctx, opts.Retries, opts.Backoff, opts.Sleep, func(attempt int) error {
		p, err := openPool(ctx, pc)
		if err != nil {
			slog.Warn("database pool attempt failed", "attempt", attempt, "max_attempts", opts.Retries, "error", err)
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Connected to Postgres successfully", "max_conns", pc.MaxConns)
	return &Gateway{pool: pool, acquireTimeout: opts.AcquireTimeout}, nil
}

// Retry calls fn up to attempts times. The wait before the n-th retry is
// initial * 2^(n-1). The final error wraps both ErrUnavailable and the last
// error returned by fn.
func Retry(ctx context.Context, attempts int, initial time.Duration, wait func(context.Context, time.Duration) error, fn func(attempt int) error) error {
	var last error
	delay := initial
	for attempt := 1; attempt <= attempts; attempt++ {
		if last = fn(attempt); last == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := wait(ctx, delay); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		delay *= 2
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempts, last)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire hands out a pooled connection. Callers must Release it. Waiting
// longer than the acquire timeout, or acquiring after Close, fails with ErrUnavailable.
func (g *Gateway) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if g.closed.Load() {
		return nil, fmt.Errorf("%w: gateway closed", ErrUnavailable)
	}
	actx, cancel := context.WithTimeout(ctx, g.acquireTimeout)
	defer cancel()
	conn, err := g.pool.Acquire(actx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %w", ErrUnavailable, err)
	}
	return conn, nil
}

// Ping checks that a connection can be acquired and used.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.Ping(ctx)
	})
}

// Close stops new acquisitions and closes the pool once in-flight
// connections have been released.
func (g *Gateway) Close() {
	if g.closed.Swap(true) {
		return
	}
	g.pool.Close()
	slog.Info("database pool closed")
}

func (g *Gateway) withConn(ctx context.Context, fn func(*pgxpool.Conn) error) error {
	conn, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return Classify(fn(conn))
}

// withTx runs fn in a single transaction. Any error rolls back everything fn did.
func (g *Gateway) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return g.withConn(ctx, func(conn *pgxpool.Conn) error {
		return pgx.BeginFunc(ctx, conn, fn)
	})
}

// Classify maps driver errors onto the package sentinels. Errors that are
// already sentinels, or that it does not recognize, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRequestClosed) ||
		errors.Is(err, ErrOfferResolved) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrInvalidValue) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case "23505": // unique_violation
			if pgErr.ConstraintName == "uq_offers_one_accepted" {
				return fmt.Errorf("%w: %s", ErrRequestClosed, pgErr.ConstraintName)
			}
		case "23514", // check_violation
			"22003": // numeric_value_out_of_range
			return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.Message)
		}
		return err
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
