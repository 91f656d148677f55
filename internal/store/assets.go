package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ── Assets ──

func (s *PostgresStore) InsertAsset(ctx context.Context, item Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, tag, name, category, serial_number, status, assigned_to_id, purchased_at, warranty_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Tag, item.Name, item.Category, item.SerialNumber, item.Status, item.AssignedToID, item.PurchasedAt, item.WarrantyUntil)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (Asset, error) {
	var item Asset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tag, name, category, serial_number, status, assigned_to_id, purchased_at, warranty_until, created_at, updated_at
		FROM assets WHERE id=$1 OR tag=$1
	`, id).Scan(&item.ID, &item.Tag, &item.Name, &item.Category, &item.SerialNumber, &item.Status,
		&item.AssignedToID, &item.PurchasedAt, &item.WarrantyUntil, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, category, status string) ([]Asset, error) {
	query := `
		SELECT id, tag, name, category, serial_number, status, assigned_to_id, purchased_at, warranty_until, created_at, updated_at
		FROM assets
		WHERE 1=1
	`
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category=$%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY tag ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		var item Asset
		if err := rows.Scan(&item.ID, &item.Tag, &item.Name, &item.Category, &item.SerialNumber, &item.Status,
			&item.AssignedToID, &item.PurchasedAt, &item.WarrantyUntil, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAsset(ctx context.Context, item Asset) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET name=$2, category=$3, serial_number=$4, status=$5, assigned_to_id=$6, purchased_at=$7, warranty_until=$8, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.Category, item.SerialNumber, item.Status, item.AssignedToID, item.PurchasedAt, item.WarrantyUntil)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Licenses ──

func (s *PostgresStore) InsertLicense(ctx context.Context, item License) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (id, product, vendor, seats, expires_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Product, item.Vendor, item.Seats, item.ExpiresAt, item.Notes)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLicense(ctx context.Context, id string) (License, error) {
	var item License
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.product, l.vendor, l.seats,
			(SELECT COUNT(*) FROM license_assignments la WHERE la.license_id=l.id),
			l.expires_at, l.notes, l.created_at, l.updated_at
		FROM licenses l
		WHERE l.id=$1
	`, id).Scan(&item.ID, &item.Product, &item.Vendor, &item.Seats, &item.SeatsUsed,
		&item.ExpiresAt, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return License{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListLicenses(ctx context.Context) ([]License, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.product, l.vendor, l.seats,
			(SELECT COUNT(*) FROM license_assignments la WHERE la.license_id=l.id),
			l.expires_at, l.notes, l.created_at, l.updated_at
		FROM licenses l
		ORDER BY l.product ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	items := make([]License, 0)
	for rows.Next() {
		var item License
		if err := rows.Scan(&item.ID, &item.Product, &item.Vendor, &item.Seats, &item.SeatsUsed,
			&item.ExpiresAt, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateLicense(ctx context.Context, item License) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET product=$2, vendor=$3, seats=$4, expires_at=$5, notes=$6, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Product, item.Vendor, item.Seats, item.ExpiresAt, item.Notes)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteLicense(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignLicenseSeat inserts an assignment only while seats remain; returns
// false when the license is fully allocated or the user already holds a seat.
func (s *PostgresStore) AssignLicenseSeat(ctx context.Context, item LicenseAssignment) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO license_assignments (id, license_id, user_id)
		SELECT $1, $2, $3
		WHERE (SELECT COUNT(*) FROM license_assignments WHERE license_id=$2)
			< (SELECT seats FROM licenses WHERE id=$2)
		ON CONFLICT (license_id, user_id) DO NOTHING
	`, item.ID, item.LicenseID, item.UserID)
	if err != nil {
		return false, fmt.Errorf("assign license seat: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) ReleaseLicenseSeat(ctx context.Context, licenseID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM license_assignments WHERE license_id=$1 AND user_id=$2
	`, licenseID, userID)
	if err != nil {
		return fmt.Errorf("release license seat: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListLicenseAssignments(ctx context.Context, licenseID string) ([]LicenseAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT la.id, la.license_id, la.user_id, u.display_name, la.assigned_at
		FROM license_assignments la
		JOIN users u ON u.id = la.user_id
		WHERE la.license_id=$1
		ORDER BY la.assigned_at ASC
	`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list license assignments: %w", err)
	}
	defer rows.Close()

	items := make([]LicenseAssignment, 0)
	for rows.Next() {
		var item LicenseAssignment
		if err := rows.Scan(&item.ID, &item.LicenseID, &item.UserID, &item.UserName, &item.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan license assignment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate license assignments: %w", err)
	}
	return items, nil
}
