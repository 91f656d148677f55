package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) InsertAccount(ctx context.Context, item Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, domain, plan, billing_email, mrr, health_score, renewal_at, owner_id)
		VALUES ($1, $2, $3, $4, LOWER($5), $6, $7, $8, $9)
	`, item.ID, item.Name, item.Domain, item.Plan, item.BillingEmail, item.MRR, item.HealthScore, item.RenewalAt, item.OwnerID)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	var item Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, domain, plan, billing_email, mrr, health_score, renewal_at, owner_id, created_at, updated_at
		FROM accounts
		WHERE id=$1
	`, id).Scan(&item.ID, &item.Name, &item.Domain, &item.Plan, &item.BillingEmail, &item.MRR,
		&item.HealthScore, &item.RenewalAt, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, plan string, renewalWithinDays int) ([]Account, error) {
	query := `
		SELECT id, name, domain, plan, billing_email, mrr, health_score, renewal_at, owner_id, created_at, updated_at
		FROM accounts
		WHERE 1=1
	`
	args := []any{}
	if plan != "" {
		args = append(args, plan)
		query += fmt.Sprintf(" AND plan=$%d", len(args))
	}
	if renewalWithinDays > 0 {
		args = append(args, renewalWithinDays)
		query += fmt.Sprintf(" AND renewal_at IS NOT NULL AND renewal_at < NOW() + ($%d || ' days')::interval", len(args))
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	items := make([]Account, 0)
	for rows.Next() {
		var item Account
		if err := rows.Scan(&item.ID, &item.Name, &item.Domain, &item.Plan, &item.BillingEmail, &item.MRR,
			&item.HealthScore, &item.RenewalAt, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, item Account) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET name=$2, domain=$3, plan=$4, billing_email=LOWER($5), mrr=$6, health_score=$7, renewal_at=$8, owner_id=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.Domain, item.Plan, item.BillingEmail, item.MRR, item.HealthScore, item.RenewalAt, item.OwnerID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) InsertTouchpoint(ctx context.Context, item Touchpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO touchpoints (id, account_id, kind, note, author_name, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.AccountID, item.Kind, item.Note, item.AuthorName, item.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert touchpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTouchpoints(ctx context.Context, accountID string, limit int) ([]Touchpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, kind, note, author_name, occurred_at, created_at
		FROM touchpoints
		WHERE account_id=$1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list touchpoints: %w", err)
	}
	defer rows.Close()

	items := make([]Touchpoint, 0)
	for rows.Next() {
		var item Touchpoint
		if err := rows.Scan(&item.ID, &item.AccountID, &item.Kind, &item.Note, &item.AuthorName, &item.OccurredAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan touchpoint: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate touchpoints: %w", err)
	}
	return items, nil
}
