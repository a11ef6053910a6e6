package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

const alertColumns = `id, hazard_type, severity, center_lat, center_lon, radius_m, valid_until,
	source, created_by, status, score, official, created_at, dispatched_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteDB) CreateAlert(ctx context.Context, a *models.Alert) error {
	createdBy := sql.NullString{String: a.CreatedBy, Valid: a.CreatedBy != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.HazardType), string(a.Severity), a.CenterLat, a.CenterLon, a.RadiusM,
		toMillis(a.ValidUntil), a.Source, createdBy, string(a.Status), a.Score, boolInt(a.Official),
		toMillis(a.CreatedAt), nullMillis(a.DispatchedAt),
	)
	if err != nil {
		return fmt.Errorf("error inserting alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	return scanAlertRow(row, id)
}

func scanAlertRow(row rowScanner, id string) (*models.Alert, error) {
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning alert: %w", err)
	}
	return a, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		a            models.Alert
		hazard       string
		severity     string
		status       string
		createdBy    sql.NullString
		official     int
		validUntil   int64
		createdAt    int64
		dispatchedAt sql.NullInt64
	)
	if err := row.Scan(&a.ID, &hazard, &severity, &a.CenterLat, &a.CenterLon, &a.RadiusM, &validUntil,
		&a.Source, &createdBy, &status, &a.Score, &official, &createdAt, &dispatchedAt); err != nil {
		return nil, err
	}
	a.HazardType = models.HazardType(hazard)
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	a.CreatedBy = createdBy.String
	a.Official = official != 0
	a.ValidUntil = fromMillis(validUntil)
	a.CreatedAt = fromMillis(createdAt)
	a.DispatchedAt = timePtr(dispatchedAt)
	return &a, nil
}

func (s *SQLiteDB) ListAlerts(ctx context.Context, opts AlertFilter) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var (
		conds []string
		args  []any
	)
	if opts.LiveAt != nil {
		conds = append(conds, "status IN (?, ?)", "valid_until > ?")
		args = append(args, string(models.StatusVerified), string(models.StatusActive), toMillis(*opts.LiveAt))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) CountLiveAlerts(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE status IN (?, ?) AND valid_until > ?`,
		string(models.StatusVerified), string(models.StatusActive), toMillis(now),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting alerts: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET dispatched_at = ? WHERE id = ? AND dispatched_at IS NULL`,
		toMillis(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("error marking alert dispatched: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
