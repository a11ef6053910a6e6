package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

func (s *SQLiteDB) UpsertDevice(ctx context.Context, d *models.Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, push_token, last_lat, last_lon, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			push_token = excluded.push_token,
			last_lat = excluded.last_lat,
			last_lon = excluded.last_lon,
			last_seen_at = excluded.last_seen_at`,
		d.DeviceID,
		sql.NullString{String: d.PushToken, Valid: d.PushToken != ""},
		nullFloat(d.LastLat), nullFloat(d.LastLon), nullMillis(d.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("error upserting device: %w", err)
	}
	return nil
}

// FindWithPushTokenAndPosition returns devices that fan-out can reach.
func (s *SQLiteDB) FindWithPushTokenAndPosition(ctx context.Context) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, push_token, last_lat, last_lon, last_seen_at
		FROM devices
		WHERE push_token IS NOT NULL AND push_token != ''
			AND last_lat IS NOT NULL AND last_lon IS NOT NULL
		ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		var (
			d        models.Device
			token    sql.NullString
			lat, lon sql.NullFloat64
			seen     sql.NullInt64
		)
		if err := rows.Scan(&d.DeviceID, &token, &lat, &lon, &seen); err != nil {
			return nil, fmt.Errorf("error scanning device: %w", err)
		}
		d.PushToken = token.String
		d.LastLat = floatPtr(lat)
		d.LastLon = floatPtr(lon)
		d.LastSeenAt = timePtr(seen)
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
