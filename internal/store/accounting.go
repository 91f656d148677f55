package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ── Journal entries ──

func (s *PostgresStore) InsertJournalEntry(ctx context.Context, item JournalEntry) error {
	lines, err := jsonbValue(item.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, entry_date, memo, lines, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.EntryDate, item.Memo, lines, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJournalEntry(ctx context.Context, id string) (JournalEntry, error) {
	var item JournalEntry
	var lines []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entry_date, memo, lines, created_by, created_at
		FROM journal_entries WHERE id=$1
	`, id).Scan(&item.ID, &item.EntryDate, &item.Memo, &lines, &item.CreatedBy, &item.CreatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := jsonbScan(lines, &item.Lines); err != nil {
		return JournalEntry{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListJournalEntries(ctx context.Context, from, to *time.Time, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, entry_date, memo, lines, created_by, created_at
		FROM journal_entries
		WHERE 1=1
	`
	args := []any{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY entry_date DESC, created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	items := make([]JournalEntry, 0)
	for rows.Next() {
		var item JournalEntry
		var lines []byte
		if err := rows.Scan(&item.ID, &item.EntryDate, &item.Memo, &lines, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if err := jsonbScan(lines, &item.Lines); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return items, nil
}

// ── Invoices ──

const invoiceColumns = `id, number, account_id, status, currency, issue_date, due_date, lines, total, paid_at, created_at, updated_at`

func scanInvoice(scanner interface{ Scan(...any) error }) (Invoice, error) {
	var item Invoice
	var lines []byte
	err := scanner.Scan(&item.ID, &item.Number, &item.AccountID, &item.Status, &item.Currency,
		&item.IssueDate, &item.DueDate, &lines, &item.Total, &item.PaidAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if err := jsonbScan(lines, &item.Lines); err != nil {
		return Invoice{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertInvoice(ctx context.Context, item Invoice) error {
	lines, err := jsonbValue(item.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, number, account_id, status, currency, issue_date, due_date, lines, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Number, item.AccountID, item.Status, item.Currency, item.IssueDate, item.DueDate, lines, item.Total)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 OR number=$1
	`, id)
	return scanInvoice(row)
}

func (s *PostgresStore) ListInvoices(ctx context.Context, accountID, status string) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	if accountID != "" {
		args = append(args, accountID)
		query += fmt.Sprintf(" AND account_id=$%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY issue_date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	items := make([]Invoice, 0)
	for rows.Next() {
		item, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return items, nil
}

// UpdateInvoiceStatus transitions an invoice; the allowed previous statuses
// guard against marking a void invoice paid and similar.
func (s *PostgresStore) UpdateInvoiceStatus(ctx context.Context, id, status string, allowedFrom []string, markPaid bool) (bool, error) {
	paidExpr := "paid_at"
	if markPaid {
		paidExpr = "NOW()"
	}
	query := fmt.Sprintf(`
		UPDATE invoices SET status=$2, paid_at=%s, updated_at=NOW()
		WHERE id=$1 AND status = ANY($3)
	`, paidExpr)
	fromArray := "{" + strings.Join(allowedFrom, ",") + "}"
	result, err := s.db.ExecContext(ctx, query, id, status, fromArray)
	if err != nil {
		return false, fmt.Errorf("update invoice status: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) UpdateInvoiceLines(ctx context.Context, id string, invoiceLines []InvoiceLine, total float64, dueDate time.Time) error {
	lines, err := jsonbValue(invoiceLines)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET lines=$2, total=$3, due_date=$4, updated_at=NOW()
		WHERE id=$1 AND status='DRAFT'
	`, id, lines, total, dueDate)
	if err != nil {
		return fmt.Errorf("update invoice lines: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
