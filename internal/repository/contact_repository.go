package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	GetByPhone(phone string) (*model.Contact, error)
	ListAll() ([]model.Contact, error)
	Upsert(c *model.Contact) error
	UpdateStage(phone, stage string) error
	AddTag(phone, tag string) error
	TouchLastContacted(phone string, at time.Time) error
	AppendReply(phone string, at time.Time) error
	SetFollowUp(phone string, at *time.Time) error
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	var replies []byte
	err := row.Scan(
		&c.Phone, &c.Name, &c.Stage, pq.Array(&c.Tags), &c.Notes,
		&c.Birthday, &c.FollowUpDate, &c.LastContacted, &replies,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(replies) > 0 {
		if err := json.Unmarshal(replies, &c.ReplyTimestamps); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

const contactColumns = `
	phone, name, stage, tags, notes, birthday, follow_up_date,
	last_contacted, reply_timestamps, created_at, updated_at
`

// GetByPhone fetches a contact by its normalized phone key
func (r *ContactRepository) GetByPhone(phone string) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone = $1`
	c, err := scanContact(r.DB.QueryRow(query, phone))
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	return c, err
}

// ListAll fetches every contact, oldest first
func (r *ContactRepository) ListAll() ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// Upsert creates or replaces a contact keyed by phone
func (r *ContactRepository) Upsert(c *model.Contact) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Stage == "" {
		c.Stage = model.StageNew
	}
	replies, err := json.Marshal(c.ReplyTimestamps)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO contacts (` + contactColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (phone) DO UPDATE SET
            name=$2, stage=$3, tags=$4, notes=$5, birthday=$6,
            follow_up_date=$7, last_contacted=$8, reply_timestamps=$9,
            updated_at=$11
    `
	_, err = r.DB.Exec(query,
		c.Phone, c.Name, c.Stage, pq.Array(c.Tags), c.Notes, c.Birthday,
		c.FollowUpDate, c.LastContacted, replies, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ContactRepository) UpdateStage(phone, stage string) error {
	_, err := r.DB.Exec(`UPDATE contacts SET stage=$1, updated_at=NOW() WHERE phone=$2`, stage, phone)
	return err
}

// AddTag appends a tag unless the contact already carries it
func (r *ContactRepository) AddTag(phone, tag string) error {
	query := `
        UPDATE contacts
        SET tags = array_append(tags, $1), updated_at=NOW()
        WHERE phone=$2 AND NOT ($1 = ANY(tags))
    `
	_, err := r.DB.Exec(query, tag, phone)
	return err
}

func (r *ContactRepository) TouchLastContacted(phone string, at time.Time) error {
	_, err := r.DB.Exec(`UPDATE contacts SET last_contacted=$1, updated_at=NOW() WHERE phone=$2`, at, phone)
	return err
}

// AppendReply records one inbound reply instant on the contact
func (r *ContactRepository) AppendReply(phone string, at time.Time) error {
	query := `
        UPDATE contacts
        SET reply_timestamps = COALESCE(reply_timestamps, '[]'::jsonb) || to_jsonb($1::timestamptz),
            updated_at=NOW()
        WHERE phone=$2
    `
	_, err := r.DB.Exec(query, at, phone)
	return err
}

func (r *ContactRepository) SetFollowUp(phone string, at *time.Time) error {
	_, err := r.DB.Exec(`UPDATE contacts SET follow_up_date=$1, updated_at=NOW() WHERE phone=$2`, at, phone)
	return err
}
