package repository

import (
	"database/sql"
	"time"
)

// DNCRepositoryInterface is the do-not-contact suppression list. Entries are
// permanent until explicitly removed or cleared.
type DNCRepositoryInterface interface {
	Contains(phone string) (bool, error)
	List() ([]string, error)
	Add(phone string) error
	Remove(phone string) error
	Clear() error
}

type DNCRepository struct {
	DB *sql.DB
}

func (r *DNCRepository) Contains(phone string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM dnc_list WHERE phone=$1)`, phone).Scan(&exists)
	return exists, err
}

func (r *DNCRepository) List() ([]string, error) {
	rows, err := r.DB.Query(`SELECT phone FROM dnc_list ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phones := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

// Add is idempotent: re-adding an existing phone is a no-op
func (r *DNCRepository) Add(phone string) error {
	_, err := r.DB.Exec(
		`INSERT INTO dnc_list (phone, added_at) VALUES ($1, $2) ON CONFLICT (phone) DO NOTHING`,
		phone, time.Now(),
	)
	return err
}

func (r *DNCRepository) Remove(phone string) error {
	_, err := r.DB.Exec(`DELETE FROM dnc_list WHERE phone=$1`, phone)
	return err
}

func (r *DNCRepository) Clear() error {
	_, err := r.DB.Exec(`DELETE FROM dnc_list`)
	return err
}
