package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type TicketFilter struct {
	Status     string
	Priority   string
	AssigneeID string
	Query      string
	Limit      int
	Offset     int
}

const ticketColumns = `id, number, subject, body, status, priority, requester_name, requester_email,
	assignee_id, tags, sla_due_at, resolved_at, created_at, updated_at`

func scanTicket(scanner interface{ Scan(...any) error }) (Ticket, error) {
	var item Ticket
	var tags []byte
	err := scanner.Scan(&item.ID, &item.Number, &item.Subject, &item.Body, &item.Status, &item.Priority,
		&item.RequesterName, &item.RequesterEmail, &item.AssigneeID, &tags,
		&item.SLADueAt, &item.ResolvedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Ticket{}, err
	}
	if err := jsonbScan(tags, &item.Tags); err != nil {
		return Ticket{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTicket(ctx context.Context, item Ticket) error {
	tags, err := jsonbValue(item.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, number, subject, body, status, priority, requester_name, requester_email, assignee_id, tags, sla_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, LOWER($8), $9, $10, $11)
	`, item.ID, item.Number, item.Subject, item.Body, item.Status, item.Priority,
		item.RequesterName, item.RequesterEmail, item.AssigneeID, tags, item.SLADueAt)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, id string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id=$1 OR number=$1
	`, id)
	return scanTicket(row)
}

func (s *PostgresStore) ListTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`)
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&query, " AND status=$%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		fmt.Fprintf(&query, " AND priority=$%d", len(args))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		fmt.Fprintf(&query, " AND assignee_id=$%d", len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		fmt.Fprintf(&query, " AND (subject ILIKE $%d OR number ILIKE $%d)", len(args), len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	fmt.Fprintf(&query, " LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	fmt.Fprintf(&query, " OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	items := make([]Ticket, 0)
	for rows.Next() {
		item, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, item Ticket) error {
	tags, err := jsonbValue(item.Tags)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET subject=$2, body=$3, priority=$4, tags=$5, sla_due_at=$6, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Subject, item.Body, item.Priority, tags, item.SLADueAt)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateTicketStatus(ctx context.Context, id, status string, resolved bool) error {
	resolvedExpr := "resolved_at"
	if resolved {
		resolvedExpr = "NOW()"
	}
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE tickets SET status=$2, resolved_at=%s, updated_at=NOW() WHERE id=$1
	`, resolvedExpr), id, status)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) AssignTicket(ctx context.Context, id string, assigneeID *string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET assignee_id=$2, updated_at=NOW() WHERE id=$1
	`, id, assigneeID)
	if err != nil {
		return fmt.Errorf("assign ticket: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteTicket(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) InsertTicketComment(ctx context.Context, item TicketComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_comments (id, ticket_id, author_id, author_name, body, internal)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.TicketID, item.AuthorID, item.AuthorName, item.Body, item.Internal)
	if err != nil {
		return fmt.Errorf("insert ticket comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTicketComments(ctx context.Context, ticketID string, includeInternal bool) ([]TicketComment, error) {
	query := `
		SELECT id, ticket_id, author_id, author_name, body, internal, created_at
		FROM ticket_comments
		WHERE ticket_id=$1
	`
	if !includeInternal {
		query += " AND NOT internal"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket comments: %w", err)
	}
	defer rows.Close()

	items := make([]TicketComment, 0)
	for rows.Next() {
		var item TicketComment
		if err := rows.Scan(&item.ID, &item.TicketID, &item.AuthorID, &item.AuthorName, &item.Body, &item.Internal, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket comments: %w", err)
	}
	return items, nil
}
