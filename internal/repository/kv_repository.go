package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/unclebandit/chatleopard-backend/internal/model"
)

// Well-known kv_store keys.
const (
	KeyAnalytics   = "analytics"
	KeySettings    = "settings"
	KeyRunSnapshot = "run_snapshot"
	KeyPinnedChats = "pinned_chats"
	KeyScanMarks   = "reply_scan_marks"
)

// KVRepositoryInterface holds the loose singleton records (analytics
// aggregate, settings, run snapshot, pinned-chat list) as JSON rows.
type KVRepositoryInterface interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Delete(key string) error
}

type KVRepository struct {
	DB *sql.DB
}

// Get unmarshals the stored value into out. Returns false when the key has
// never been written.
func (r *KVRepository) Get(key string, out any) (bool, error) {
	var raw []byte
	err := r.DB.QueryRow(`SELECT value FROM kv_store WHERE key=$1`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

func (r *KVRepository) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(
		`INSERT INTO kv_store (key, value) VALUES ($1, $2)
         ON CONFLICT (key) DO UPDATE SET value=$2`,
		key, raw,
	)
	return err
}

func (r *KVRepository) Delete(key string) error {
	_, err := r.DB.Exec(`DELETE FROM kv_store WHERE key=$1`, key)
	return err
}

// ====================== Typed wrappers ======================

// AnalyticsStore reads and writes the rolling analytics aggregate.
type AnalyticsStore struct {
	KV KVRepositoryInterface
}

func (s *AnalyticsStore) Get() (model.Analytics, error) {
	var a model.Analytics
	_, err := s.KV.Get(KeyAnalytics, &a)
	return a, err
}

func (s *AnalyticsStore) Save(a model.Analytics) error {
	return s.KV.Set(KeyAnalytics, a)
}

func (s *AnalyticsStore) Clear() error {
	return s.KV.Delete(KeyAnalytics)
}

// SettingsStore reads and writes the runtime settings row.
type SettingsStore struct {
	KV KVRepositoryInterface
}

func (s *SettingsStore) Get() (model.Settings, error) {
	settings := model.DefaultSettings()
	_, err := s.KV.Get(KeySettings, &settings)
	return settings, err
}

func (s *SettingsStore) Save(settings model.Settings) error {
	return s.KV.Set(KeySettings, settings)
}
