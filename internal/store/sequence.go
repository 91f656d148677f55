package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// NextSequence atomically increments and returns the counter for a scope
// ("ticket", "invoice:2026", "issue:MER", ...). The upsert makes first use and
// increment a single statement, so concurrent callers each get a distinct value.
func (s *PostgresStore) NextSequence(ctx context.Context, scope string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counter_sequences (scope, next_value)
		VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET next_value = counter_sequences.next_value + 1
		RETURNING next_value
	`, scope).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", scope, err)
	}
	return value, nil
}

// IsUniqueViolation reports whether err is a unique-index violation
// (SQLSTATE 23505). Number insertion retries on this.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
