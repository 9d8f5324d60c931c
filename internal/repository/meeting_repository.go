package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

type MeetingRepositoryInterface interface {
	Save(m *model.Meeting) error
	GetByID(id string) (*model.Meeting, error)
	List() ([]model.Meeting, error)
	Delete(id string) error
}

type MeetingRepository struct {
	DB *sql.DB
}

func (r *MeetingRepository) Save(m *model.Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO meetings (id, phone, title, starts_at, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET phone=$2, title=$3, starts_at=$4, notes=$5
    `
	_, err := r.DB.Exec(query, m.ID, m.Phone, m.Title, m.StartsAt, m.Notes, m.CreatedAt)
	return err
}

func (r *MeetingRepository) GetByID(id string) (*model.Meeting, error) {
	var m model.Meeting
	err := r.DB.QueryRow(
		`SELECT id, phone, title, starts_at, notes, created_at FROM meetings WHERE id=$1`, id,
	).Scan(&m.ID, &m.Phone, &m.Title, &m.StartsAt, &m.Notes, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MeetingRepository) List() ([]model.Meeting, error) {
	rows, err := r.DB.Query(`SELECT id, phone, title, starts_at, notes, created_at FROM meetings ORDER BY starts_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meetings := []model.Meeting{}
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.Phone, &m.Title, &m.StartsAt, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func (r *MeetingRepository) Delete(id string) error {
	_, err := r.DB.Exec(`DELETE FROM meetings WHERE id=$1`, id)
	return err
}
