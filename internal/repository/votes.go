package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

func (s *SQLiteDB) WithinVoteTx(ctx context.Context, fn func(tx VoteTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting vote transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&sqliteVoteTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing vote transaction: %w", err)
	}
	return nil
}

type sqliteVoteTx struct {
	tx *sql.Tx
}

func (t *sqliteVoteTx) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	return scanAlertRow(row, id)
}

func (t *sqliteVoteTx) UpsertVote(ctx context.Context, voterID, alertID string, dir models.VoteDirection, at time.Time) (models.Vote, bool, error) {
	v := models.Vote{VoterID: voterID, AlertID: alertID, Direction: dir}

	var createdAt int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM votes WHERE voter_id = ? AND alert_id = ?`, voterID, alertID,
	).Scan(&v.ID, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := t.tx.ExecContext(ctx,
			`INSERT INTO votes (voter_id, alert_id, direction, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			voterID, alertID, string(dir), toMillis(at), toMillis(at),
		)
		if err != nil {
			return models.Vote{}, false, fmt.Errorf("error inserting vote: %w", err)
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return models.Vote{}, false, err
		}
		v.CreatedAt = fromMillis(toMillis(at))
		v.UpdatedAt = v.CreatedAt
		return v, true, nil
	case err != nil:
		return models.Vote{}, false, fmt.Errorf("error reading vote: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE votes SET direction = ?, updated_at = ? WHERE id = ?`, string(dir), toMillis(at), v.ID,
	); err != nil {
		return models.Vote{}, false, fmt.Errorf("error updating vote: %w", err)
	}
	v.CreatedAt = fromMillis(createdAt)
	v.UpdatedAt = fromMillis(toMillis(at))
	return v, false, nil
}

func (t *sqliteVoteTx) CountByDirection(ctx context.Context, alertID string) (int, int, error) {
	var up, down int
	err := t.tx.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0)
		FROM votes WHERE alert_id = ?`,
		string(models.VoteUp), string(models.VoteDown), alertID,
	).Scan(&up, &down)
	if err != nil {
		return 0, 0, fmt.Errorf("error counting votes: %w", err)
	}
	return up, down, nil
}

func (t *sqliteVoteTx) UpdateScoreAndStatus(ctx context.Context, alertID string, score int, status models.AlertStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE alerts SET score = ?, status = ? WHERE id = ?`, score, string(status), alertID,
	)
	if err != nil {
		return fmt.Errorf("error updating alert score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

// CountVotes returns the number of vote rows for an alert.
func (s *SQLiteDB) CountVotes(ctx context.Context, alertID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE alert_id = ?`, alertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting votes: %w", err)
	}
	return n, nil
}
