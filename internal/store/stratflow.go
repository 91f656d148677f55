package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ── Projects ──

func (s *PostgresStore) InsertProject(ctx context.Context, item Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, key, name, description, lead_id)
		VALUES ($1, UPPER($2), $3, $4, $5)
	`, item.ID, item.Key, item.Name, item.Description, item.LeadID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, name, description, lead_id, created_at, updated_at
		FROM projects
		WHERE id=$1 OR key=UPPER($1)
	`, id).Scan(&item.ID, &item.Key, &item.Name, &item.Description, &item.LeadID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, name, description, lead_id, created_at, updated_at
		FROM projects
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Key, &item.Name, &item.Description, &item.LeadID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, item Project) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=$2, description=$3, lead_id=$4, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Name, item.Description, item.LeadID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ProjectIssueCount(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE project_id=$1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("project issue count: %w", err)
	}
	return count, nil
}

// ── Board columns ──

func (s *PostgresStore) InsertBoardColumn(ctx context.Context, item BoardColumn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_columns (id, project_id, name, sort_order)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.ProjectID, item.Name, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert board column: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoardColumn(ctx context.Context, id string) (BoardColumn, error) {
	var item BoardColumn
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, sort_order, created_at FROM board_columns WHERE id=$1
	`, id).Scan(&item.ID, &item.ProjectID, &item.Name, &item.SortOrder, &item.CreatedAt)
	if err != nil {
		return BoardColumn{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListBoardColumns(ctx context.Context, projectID string) ([]BoardColumn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, sort_order, created_at
		FROM board_columns
		WHERE project_id=$1
		ORDER BY sort_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list board columns: %w", err)
	}
	defer rows.Close()

	items := make([]BoardColumn, 0)
	for rows.Next() {
		var item BoardColumn
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.SortOrder, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board column: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board columns: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RenameBoardColumn(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE board_columns SET name=$2 WHERE id=$1`, id, name)
	if err != nil {
		return fmt.Errorf("rename board column: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteBoardColumn(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete board column: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ColumnIssueCount(ctx context.Context, columnID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE column_id=$1`, columnID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("column issue count: %w", err)
	}
	return count, nil
}

// ── Issues ──

const issueColumns = `id, project_id, key, column_id, sprint_id, title, description, type, priority,
	assignee_id, reporter_name, position, estimate, labels, created_at, updated_at`

func scanIssue(scanner interface{ Scan(...any) error }) (Issue, error) {
	var item Issue
	var labels []byte
	err := scanner.Scan(&item.ID, &item.ProjectID, &item.Key, &item.ColumnID, &item.SprintID,
		&item.Title, &item.Description, &item.Type, &item.Priority, &item.AssigneeID,
		&item.Reporter, &item.Position, &item.Estimate, &labels, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Issue{}, err
	}
	if err := jsonbScan(labels, &item.Labels); err != nil {
		return Issue{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertIssue(ctx context.Context, item Issue) error {
	labels, err := jsonbValue(item.Labels)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issues (id, project_id, key, column_id, sprint_id, title, description, type, priority,
			assignee_id, reporter_name, position, estimate, labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.ProjectID, item.Key, item.ColumnID, item.SprintID, item.Title, item.Description,
		item.Type, item.Priority, item.AssigneeID, item.Reporter, item.Position, item.Estimate, labels)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, id string) (Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+issueColumns+` FROM issues WHERE id=$1 OR key=UPPER($1)
	`, id)
	return scanIssue(row)
}

type IssueFilter struct {
	ProjectID  string
	ColumnID   string
	SprintID   string
	AssigneeID string
}

func (s *PostgresStore) ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE 1=1`
	args := []any{}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(" AND project_id=$%d", len(args))
	}
	if filter.ColumnID != "" {
		args = append(args, filter.ColumnID)
		query += fmt.Sprintf(" AND column_id=$%d", len(args))
	}
	if filter.SprintID != "" {
		args = append(args, filter.SprintID)
		query += fmt.Sprintf(" AND sprint_id=$%d", len(args))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id=$%d", len(args))
	}
	query += " ORDER BY position ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	items := make([]Issue, 0)
	for rows.Next() {
		item, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateIssue(ctx context.Context, item Issue) error {
	labels, err := jsonbValue(item.Labels)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues
		SET title=$2, description=$3, type=$4, priority=$5, assignee_id=$6, sprint_id=$7, estimate=$8, labels=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.Type, item.Priority, item.AssigneeID, item.SprintID, item.Estimate, labels)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MoveIssue repositions an issue inside a column.
func (s *PostgresStore) MoveIssue(ctx context.Context, id, columnID string, position float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues SET column_id=$2, position=$3, updated_at=NOW() WHERE id=$1
	`, id, columnID, position)
	if err != nil {
		return fmt.Errorf("move issue: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReindexColumn rewrites every position in a column at fixed spacing, keeping
// the current order. Runs in one transaction so a concurrent move never sees a
// half-rewritten column.
func (s *PostgresStore) ReindexColumn(ctx context.Context, columnID string, spacing float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reindex tx: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM issues WHERE column_id=$1 ORDER BY position ASC FOR UPDATE
	`, columnID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock column issues: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("scan issue id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("iterate issue ids: %w", err)
	}

	for i, id := range ids {
		position := spacing * float64(i+1)
		if _, err := tx.ExecContext(ctx, `UPDATE issues SET position=$2 WHERE id=$1`, id, position); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reindex issue %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reindex: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Sprints ──

func (s *PostgresStore) InsertSprint(ctx context.Context, item Sprint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (id, project_id, name, goal, status, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.ProjectID, item.Name, item.Goal, item.Status, item.StartsAt, item.EndsAt)
	if err != nil {
		return fmt.Errorf("insert sprint: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSprint(ctx context.Context, id string) (Sprint, error) {
	var item Sprint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, goal, status, starts_at, ends_at, created_at
		FROM sprints WHERE id=$1
	`, id).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Goal, &item.Status, &item.StartsAt, &item.EndsAt, &item.CreatedAt)
	if err != nil {
		return Sprint{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListSprints(ctx context.Context, projectID string) ([]Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, goal, status, starts_at, ends_at, created_at
		FROM sprints
		WHERE project_id=$1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	items := make([]Sprint, 0)
	for rows.Next() {
		var item Sprint
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Goal, &item.Status, &item.StartsAt, &item.EndsAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sprints: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSprintStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sprints SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update sprint status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearSprintFromIssues detaches all issues from a completed sprint.
func (s *PostgresStore) ClearSprintFromIssues(ctx context.Context, sprintID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE issues SET sprint_id=NULL, updated_at=NOW() WHERE sprint_id=$1`, sprintID)
	if err != nil {
		return fmt.Errorf("clear sprint from issues: %w", err)
	}
	return nil
}
