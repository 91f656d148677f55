package store

import (
	"context"
	"database/sql"
	"fmt"
)

const socialPostColumns = `id, body, channels, status, scheduled_at, published_at, author_id, created_at, updated_at`

func scanSocialPost(scanner interface{ Scan(...any) error }) (SocialPost, error) {
	var item SocialPost
	var channels []byte
	err := scanner.Scan(&item.ID, &item.Body, &channels, &item.Status, &item.ScheduledAt,
		&item.PublishedAt, &item.AuthorID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return SocialPost{}, err
	}
	if err := jsonbScan(channels, &item.Channels); err != nil {
		return SocialPost{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertSocialPost(ctx context.Context, item SocialPost) error {
	channels, err := jsonbValue(item.Channels)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO social_posts (id, body, channels, status, scheduled_at, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Body, channels, item.Status, item.ScheduledAt, item.AuthorID)
	if err != nil {
		return fmt.Errorf("insert social post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSocialPost(ctx context.Context, id string) (SocialPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+socialPostColumns+` FROM social_posts WHERE id=$1`, id)
	return scanSocialPost(row)
}

func (s *PostgresStore) ListSocialPosts(ctx context.Context, status string) ([]SocialPost, error) {
	query := `SELECT ` + socialPostColumns + ` FROM social_posts WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY COALESCE(scheduled_at, created_at) DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list social posts: %w", err)
	}
	defer rows.Close()

	items := make([]SocialPost, 0)
	for rows.Next() {
		item, err := scanSocialPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan social post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSocialPost(ctx context.Context, item SocialPost) error {
	channels, err := jsonbValue(item.Channels)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE social_posts SET body=$2, channels=$3, updated_at=NOW()
		WHERE id=$1 AND status IN ('DRAFT', 'SCHEDULED')
	`, item.ID, item.Body, channels)
	if err != nil {
		return fmt.Errorf("update social post: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSocialPostSchedule transitions a post between DRAFT and SCHEDULED.
func (s *PostgresStore) UpdateSocialPostSchedule(ctx context.Context, id, status string, scheduledAt any) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE social_posts SET status=$2, scheduled_at=$3, updated_at=NOW()
		WHERE id=$1 AND status IN ('DRAFT', 'SCHEDULED')
	`, id, status, scheduledAt)
	if err != nil {
		return fmt.Errorf("schedule social post: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkSocialPostPublished(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE social_posts SET status='PUBLISHED', published_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status IN ('DRAFT', 'SCHEDULED')
	`, id)
	if err != nil {
		return false, fmt.Errorf("publish social post: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) DeleteSocialPost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM social_posts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete social post: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
