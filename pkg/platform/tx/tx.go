package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
)

type (
	ctxKey      struct{}
	shardKeyKey struct{}
)

var (
	txKey       = ctxKey{}
	shardCtxKey = shardKeyKey{}
)

// DefaultTimeout bounds a unit of work when no store timeout is configured.
const DefaultTimeout = 5 * time.Second

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// WithShardKey names the aggregate a unit of work touches. In-memory
// transaction runners use it to serialise work on the same aggregate.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardCtxKey, key)
}

// ShardKey returns the key set by WithShardKey, or "".
func ShardKey(ctx context.Context) string {
	key, _ := ctx.Value(shardCtxKey).(string)
	return key
}

// Run executes fn inside a database transaction carried in ctx. The transaction
// commits only when fn returns nil. Deadline and cancellation failures are
// reported as sentinel.ErrUnavailable so callers treat them as retryable.
func Run(ctx context.Context, db *sql.DB, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w: %w", sentinel.ErrUnavailable, err)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	// The store timeout applies under any caller deadline; the earlier one wins.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("transaction aborted: %w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
