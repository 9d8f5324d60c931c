package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

// WakeRepositoryInterface backs the durable scheduler. A wake key maps to at
// most one pending row; registering again replaces the fire time.
type WakeRepositoryInterface interface {
	Register(w *model.ScheduledWake) error
	Cancel(key model.WakeKey) error
	CancelBySequence(sequenceID string) error
	Due(now time.Time) ([]model.ScheduledWake, error)
	Delete(id int64) error
	ListPending() ([]model.ScheduledWake, error)
}

type WakeRepository struct {
	DB *sql.DB
}

const wakeColumns = `id, kind, sequence_id, phone, step, ref_id, fire_at, payload`

func scanWake(row interface{ Scan(...any) error }) (*model.ScheduledWake, error) {
	var w model.ScheduledWake
	err := row.Scan(
		&w.ID, &w.Key.Kind, &w.Key.SequenceID, &w.Key.Phone, &w.Key.Step,
		&w.Key.RefID, &w.FireAt, &w.Payload,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Register upserts on the structured key columns, so re-registering a key
// replaces the previous timer rather than stacking a second one.
func (r *WakeRepository) Register(w *model.ScheduledWake) error {
	query := `
        INSERT INTO scheduled_wakes (kind, sequence_id, phone, step, ref_id, fire_at, payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (kind, sequence_id, phone, step, ref_id)
        DO UPDATE SET fire_at=$6, payload=$7
        RETURNING id
    `
	return r.DB.QueryRow(query,
		w.Key.Kind, w.Key.SequenceID, w.Key.Phone, w.Key.Step, w.Key.RefID,
		w.FireAt, w.Payload,
	).Scan(&w.ID)
}

func (r *WakeRepository) Cancel(key model.WakeKey) error {
	_, err := r.DB.Exec(
		`DELETE FROM scheduled_wakes WHERE kind=$1 AND sequence_id=$2 AND phone=$3 AND step=$4 AND ref_id=$5`,
		key.Kind, key.SequenceID, key.Phone, key.Step, key.RefID,
	)
	return err
}

// CancelBySequence drops every pending wake for a sequence, any phone, any
// step. Used when a sequence is deleted so no orphaned timer fires later.
func (r *WakeRepository) CancelBySequence(sequenceID string) error {
	_, err := r.DB.Exec(`DELETE FROM scheduled_wakes WHERE sequence_id=$1`, sequenceID)
	return err
}

func (r *WakeRepository) Due(now time.Time) ([]model.ScheduledWake, error) {
	rows, err := r.DB.Query(
		`SELECT `+wakeColumns+` FROM scheduled_wakes WHERE fire_at <= $1 ORDER BY fire_at`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wakes := []model.ScheduledWake{}
	for rows.Next() {
		w, err := scanWake(rows)
		if err != nil {
			return nil, err
		}
		wakes = append(wakes, *w)
	}
	return wakes, rows.Err()
}

func (r *WakeRepository) Delete(id int64) error {
	_, err := r.DB.Exec(`DELETE FROM scheduled_wakes WHERE id=$1`, id)
	return err
}

func (r *WakeRepository) ListPending() ([]model.ScheduledWake, error) {
	rows, err := r.DB.Query(`SELECT ` + wakeColumns + ` FROM scheduled_wakes ORDER BY fire_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wakes := []model.ScheduledWake{}
	for rows.Next() {
		w, err := scanWake(rows)
		if err != nil {
			return nil, err
		}
		wakes = append(wakes, *w)
	}
	return wakes, rows.Err()
}
