package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// LockRepository acquires Postgres advisory locks scoped to a transaction.
type LockRepository struct{}

// NewLockRepository constructs the repository.
func NewLockRepository() *LockRepository {
	return &LockRepository{}
}

// TryXactLock attempts to take the advisory lock named key. The lock is
// released when the surrounding transaction ends. exec must be a transaction.
func (r *LockRepository) TryXactLock(ctx context.Context, exec sqlx.ExtContext, key string) (bool, error) {
	var acquired bool
	if err := sqlx.GetContext(ctx, exec, &acquired, "SELECT pg_try_advisory_xact_lock(hashtext($1))", key); err != nil {
		return false, fmt.Errorf("acquire advisory lock %s: %w", key, err)
	}
	return acquired, nil
}

// XactLock blocks until the advisory lock named key is held by the transaction.
func (r *LockRepository) XactLock(ctx context.Context, exec sqlx.ExtContext, key string) error {
	if _, err := exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("wait advisory lock %s: %w", key, err)
	}
	return nil
}
