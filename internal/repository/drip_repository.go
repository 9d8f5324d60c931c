package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
)

type DripRepositoryInterface interface {
	// Sequences
	SaveSequence(seq *model.DripSequence) error
	GetSequence(id string) (*model.DripSequence, error)
	ListSequences() ([]model.DripSequence, error)
	DeleteSequence(id string) error

	// Enrollments
	Enroll(e *model.DripEnrollment) (bool, error)
	GetEnrollment(phone, sequenceID string) (*model.DripEnrollment, error)
	ListEnrollments(sequenceID string) ([]model.DripEnrollment, error)
	AdvanceEnrollment(phone, sequenceID string, stepIndex int, nextFireAt time.Time) error
	DeleteEnrollment(phone, sequenceID string) error
}

type DripRepository struct {
	DB *sql.DB
}

// ====================== Sequences ======================

func (r *DripRepository) SaveSequence(seq *model.DripSequence) error {
	if seq.CreatedAt.IsZero() {
		seq.CreatedAt = time.Now()
	}
	steps, err := json.Marshal(seq.Steps)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO drip_sequences (id, name, steps, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET name=$2, steps=$3
    `
	_, err = r.DB.Exec(query, seq.ID, seq.Name, steps, seq.CreatedAt)
	return err
}

func (r *DripRepository) GetSequence(id string) (*model.DripSequence, error) {
	var seq model.DripSequence
	var steps []byte
	err := r.DB.QueryRow(
		`SELECT id, name, steps, created_at FROM drip_sequences WHERE id=$1`, id,
	).Scan(&seq.ID, &seq.Name, &steps, &seq.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSequenceNotFound(id)
		}
		return nil, err
	}
	if err := json.Unmarshal(steps, &seq.Steps); err != nil {
		return nil, err
	}
	return &seq, nil
}

func (r *DripRepository) ListSequences() ([]model.DripSequence, error) {
	rows, err := r.DB.Query(`SELECT id, name, steps, created_at FROM drip_sequences ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seqs := []model.DripSequence{}
	for rows.Next() {
		var seq model.DripSequence
		var steps []byte
		if err := rows.Scan(&seq.ID, &seq.Name, &steps, &seq.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(steps, &seq.Steps); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

// DeleteSequence removes the sequence and cascades to its enrollments
func (r *DripRepository) DeleteSequence(id string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM drip_enrollments WHERE sequence_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM drip_sequences WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ====================== Enrollments ======================

// Enroll inserts one enrollment per (phone, sequence) pair. Returns false
// when the pair was already enrolled.
func (r *DripRepository) Enroll(e *model.DripEnrollment) (bool, error) {
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	query := `
        INSERT INTO drip_enrollments (phone, sequence_id, step_index, next_fire_at, enrolled_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (phone, sequence_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, e.Phone, e.SequenceID, e.StepIndex, e.NextFireAt, e.EnrolledAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *DripRepository) GetEnrollment(phone, sequenceID string) (*model.DripEnrollment, error) {
	var e model.DripEnrollment
	err := r.DB.QueryRow(
		`SELECT phone, sequence_id, step_index, next_fire_at, enrolled_at
         FROM drip_enrollments WHERE phone=$1 AND sequence_id=$2`,
		phone, sequenceID,
	).Scan(&e.Phone, &e.SequenceID, &e.StepIndex, &e.NextFireAt, &e.EnrolledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not enrolled
		}
		return nil, err
	}
	return &e, nil
}

func (r *DripRepository) ListEnrollments(sequenceID string) ([]model.DripEnrollment, error) {
	rows, err := r.DB.Query(
		`SELECT phone, sequence_id, step_index, next_fire_at, enrolled_at
         FROM drip_enrollments WHERE sequence_id=$1 ORDER BY enrolled_at`,
		sequenceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	es := []model.DripEnrollment{}
	for rows.Next() {
		var e model.DripEnrollment
		if err := rows.Scan(&e.Phone, &e.SequenceID, &e.StepIndex, &e.NextFireAt, &e.EnrolledAt); err != nil {
			return nil, err
		}
		es = append(es, e)
	}
	return es, rows.Err()
}

// AdvanceEnrollment moves an enrollment to the given step. Step indices only
// ever grow; completion deletes the row instead.
func (r *DripRepository) AdvanceEnrollment(phone, sequenceID string, stepIndex int, nextFireAt time.Time) error {
	_, err := r.DB.Exec(
		`UPDATE drip_enrollments SET step_index=$1, next_fire_at=$2 WHERE phone=$3 AND sequence_id=$4`,
		stepIndex, nextFireAt, phone, sequenceID,
	)
	return err
}

func (r *DripRepository) DeleteEnrollment(phone, sequenceID string) error {
	_, err := r.DB.Exec(`DELETE FROM drip_enrollments WHERE phone=$1 AND sequence_id=$2`, phone, sequenceID)
	return err
}
