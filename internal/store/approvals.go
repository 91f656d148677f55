package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertApprovalRequest(ctx context.Context, item ApprovalRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_requests (id, kind, title, description, amount, currency, status, requested_by, requester_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Kind, item.Title, item.Description, item.Amount, item.Currency, item.Status, item.RequestedBy, item.RequesterID)
	if err != nil {
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApprovalRequest(ctx context.Context, id string) (ApprovalRequest, error) {
	var item ApprovalRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, title, description, amount, currency, status, requested_by, requester_id,
			decided_by, decision_note, decided_at, created_at
		FROM approval_requests
		WHERE id=$1
	`, id).Scan(&item.ID, &item.Kind, &item.Title, &item.Description, &item.Amount, &item.Currency,
		&item.Status, &item.RequestedBy, &item.RequesterID, &item.DecidedBy, &item.DecisionNote,
		&item.DecidedAt, &item.CreatedAt)
	if err != nil {
		return ApprovalRequest{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListApprovalRequests(ctx context.Context, status, kind string) ([]ApprovalRequest, error) {
	query := `
		SELECT id, kind, title, description, amount, currency, status, requested_by, requester_id,
			decided_by, decision_note, decided_at, created_at
		FROM approval_requests
		WHERE 1=1
	`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if kind != "" {
		args = append(args, kind)
		query += fmt.Sprintf(" AND kind=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	defer rows.Close()

	items := make([]ApprovalRequest, 0)
	for rows.Next() {
		var item ApprovalRequest
		if err := rows.Scan(&item.ID, &item.Kind, &item.Title, &item.Description, &item.Amount, &item.Currency,
			&item.Status, &item.RequestedBy, &item.RequesterID, &item.DecidedBy, &item.DecisionNote,
			&item.DecidedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approval requests: %w", err)
	}
	return items, nil
}

// DecideApprovalRequest records a decision; only pending requests can be decided.
func (s *PostgresStore) DecideApprovalRequest(ctx context.Context, id, status, decidedBy, note string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status=$2, decided_by=$3, decision_note=$4, decided_at=NOW()
		WHERE id=$1 AND status='PENDING'
	`, id, status, decidedBy, note)
	if err != nil {
		return false, fmt.Errorf("decide approval request: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) CancelApprovalRequest(ctx context.Context, id, requesterID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status='CANCELLED', decided_at=NOW()
		WHERE id=$1 AND requester_id=$2 AND status='PENDING'
	`, id, requesterID)
	if err != nil {
		return false, fmt.Errorf("cancel approval request: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
