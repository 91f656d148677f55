package store

import (
	"context"
	"database/sql"
	"fmt"
)

const contractColumns = `id, number, title, account_id, status, body, current_revision, created_by, sent_at, completed_at, created_at, updated_at`

func scanContract(scanner interface{ Scan(...any) error }) (Contract, error) {
	var item Contract
	err := scanner.Scan(&item.ID, &item.Number, &item.Title, &item.AccountID, &item.Status, &item.Body,
		&item.CurrentRevision, &item.CreatedBy, &item.SentAt, &item.CompletedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Contract{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertContract(ctx context.Context, item Contract) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, number, title, account_id, status, body, current_revision, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.Number, item.Title, item.AccountID, item.Status, item.Body, item.CurrentRevision, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContract(ctx context.Context, id string) (Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+` FROM contracts WHERE id=$1 OR number=$1
	`, id)
	return scanContract(row)
}

func (s *PostgresStore) ListContracts(ctx context.Context, status, accountID string) ([]Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if accountID != "" {
		args = append(args, accountID)
		query += fmt.Sprintf(" AND account_id=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	items := make([]Contract, 0)
	for rows.Next() {
		item, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return items, nil
}

// UpdateContractBody only touches drafts; sent contracts are immutable.
func (s *PostgresStore) UpdateContractBody(ctx context.Context, id, title, body, revision string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET title=$2, body=$3, current_revision=$4, updated_at=NOW()
		WHERE id=$1 AND status='DRAFT'
	`, id, title, body, revision)
	if err != nil {
		return fmt.Errorf("update contract body: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkContractSent(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET status='SENT', sent_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='DRAFT'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark contract sent: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) MarkContractCompleted(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET status='COMPLETED', completed_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='SENT'
	`, id)
	if err != nil {
		return fmt.Errorf("mark contract completed: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkContractDeclined(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET status='DECLINED', updated_at=NOW()
		WHERE id=$1 AND status='SENT'
	`, id)
	if err != nil {
		return fmt.Errorf("mark contract declined: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) VoidContract(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET status='VOID', updated_at=NOW()
		WHERE id=$1 AND status IN ('DRAFT', 'SENT')
	`, id)
	if err != nil {
		return false, fmt.Errorf("void contract: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) DeleteContract(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contracts WHERE id=$1 AND status='DRAFT'`, id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Signers ──

const signerColumns = `id, contract_id, email, name, token_hash, status, sort_order, signed_at, decline_reason, created_at`

func scanSigner(scanner interface{ Scan(...any) error }) (Signer, error) {
	var item Signer
	err := scanner.Scan(&item.ID, &item.ContractID, &item.Email, &item.Name, &item.TokenHash,
		&item.Status, &item.SortOrder, &item.SignedAt, &item.DeclineReason, &item.CreatedAt)
	if err != nil {
		return Signer{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertSigner(ctx context.Context, item Signer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signers (id, contract_id, email, name, token_hash, status, sort_order)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
	`, item.ID, item.ContractID, item.Email, item.Name, item.TokenHash, item.Status, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert signer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSigners(ctx context.Context, contractID string) ([]Signer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signerColumns+` FROM signers WHERE contract_id=$1 ORDER BY sort_order ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	defer rows.Close()

	items := make([]Signer, 0)
	for rows.Next() {
		item, err := scanSigner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSignerByTokenHash(ctx context.Context, tokenHash string) (Signer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+signerColumns+` FROM signers WHERE token_hash=$1
	`, tokenHash)
	return scanSigner(row)
}

func (s *PostgresStore) UpdateSignerToken(ctx context.Context, id, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE signers SET token_hash=$2 WHERE id=$1
	`, id, tokenHash)
	if err != nil {
		return fmt.Errorf("update signer token: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkSignerSigned flips a pending signer; returns false when the signer
// already acted.
func (s *PostgresStore) MarkSignerSigned(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE signers SET status='SIGNED', signed_at=NOW()
		WHERE id=$1 AND status='PENDING'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark signer signed: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) MarkSignerDeclined(ctx context.Context, id, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE signers SET status='DECLINED', decline_reason=$2
		WHERE id=$1 AND status='PENDING'
	`, id, reason)
	if err != nil {
		return false, fmt.Errorf("mark signer declined: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) CountPendingSigners(ctx context.Context, contractID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM signers WHERE contract_id=$1 AND status='PENDING'
	`, contractID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending signers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteSigners(ctx context.Context, contractID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM signers WHERE contract_id=$1`, contractID)
	if err != nil {
		return fmt.Errorf("delete signers: %w", err)
	}
	return nil
}
