package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

func (s *SQLiteDB) AddShelter(ctx context.Context, sh *models.Shelter) error {
	var capacity sql.NullInt64
	if sh.Capacity != nil {
		capacity = sql.NullInt64{Int64: int64(*sh.Capacity), Valid: true}
	}
	shelterType := sh.Type
	if shelterType == "" {
		shelterType = models.ShelterPublic
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO shelters (name, shelter_type, address, lat, lon, capacity, is_verified, is_open, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.Name, string(shelterType), sh.Address, sh.Latitude, sh.Longitude, capacity,
		boolInt(sh.IsVerified), boolInt(sh.IsOpen), sql.NullString{String: sh.Source, Valid: sh.Source != ""},
		toMillis(sh.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error inserting shelter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sh.ID = id
	sh.Type = shelterType
	return nil
}

// FindOpenInBoundingBox is the indexed range query behind nearby-shelter lookups.
func (s *SQLiteDB) FindOpenInBoundingBox(ctx context.Context, box geo.Bounds) ([]models.Shelter, error) {
	lonClause := "lon BETWEEN ? AND ?"
	if box.CrossesAntimeridian() {
		lonClause = "(lon >= ? OR lon <= ?)"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, shelter_type, address, lat, lon, capacity, is_verified, is_open, source, created_at
		FROM shelters
		WHERE is_open = 1 AND lat BETWEEN ? AND ? AND `+lonClause,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying shelters: %w", err)
	}
	defer rows.Close()

	var out []models.Shelter
	for rows.Next() {
		var (
			sh             models.Shelter
			shelterType    string
			capacity       sql.NullInt64
			verified, open int
			source         sql.NullString
			createdAt      int64
		)
		if err := rows.Scan(&sh.ID, &sh.Name, &shelterType, &sh.Address, &sh.Latitude, &sh.Longitude,
			&capacity, &verified, &open, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning shelter: %w", err)
		}
		sh.Type = models.ShelterType(shelterType)
		if capacity.Valid {
			c := int(capacity.Int64)
			sh.Capacity = &c
		}
		sh.IsVerified = verified != 0
		sh.IsOpen = open != 0
		sh.Source = source.String
		sh.CreatedAt = fromMillis(createdAt)
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) CountShelters(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shelters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting shelters: %w", err)
	}
	return n, nil
}

// ImportShelters upserts shelters in one transaction, matching existing rows on
// name, address and coordinates. Any error rolls back the whole batch.
func (s *SQLiteDB) ImportShelters(ctx context.Context, shelters []models.Shelter) (created, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("error starting import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range shelters {
		sh := &shelters[i]
		if sh.Type == "" {
			sh.Type = models.ShelterPublic
		}
		var capacity sql.NullInt64
		if sh.Capacity != nil {
			capacity = sql.NullInt64{Int64: int64(*sh.Capacity), Valid: true}
		}
		source := sql.NullString{String: sh.Source, Valid: sh.Source != ""}

		var id int64
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM shelters WHERE name = ? AND address = ? AND lat = ? AND lon = ?`,
			sh.Name, sh.Address, sh.Latitude, sh.Longitude,
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			var res sql.Result
			res, err = tx.ExecContext(ctx, `
				INSERT INTO shelters (name, shelter_type, address, lat, lon, capacity, is_verified, is_open, source, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sh.Name, string(sh.Type), sh.Address, sh.Latitude, sh.Longitude, capacity,
				boolInt(sh.IsVerified), boolInt(sh.IsOpen), source, toMillis(sh.CreatedAt),
			)
			if err != nil {
				return 0, 0, fmt.Errorf("error inserting shelter %q: %w", sh.Name, err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return 0, 0, err
			}
			created++
		case err != nil:
			return 0, 0, fmt.Errorf("error looking up shelter %q: %w", sh.Name, err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE shelters SET shelter_type = ?, capacity = ?, is_verified = ?, is_open = ?, source = ?
				WHERE id = ?`,
				string(sh.Type), capacity, boolInt(sh.IsVerified), boolInt(sh.IsOpen), source, id,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("error updating shelter %q: %w", sh.Name, err)
			}
			updated++
		}
		sh.ID = id
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing import: %w", err)
	}
	return created, updated, nil
}
