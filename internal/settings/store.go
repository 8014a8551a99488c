package settings

import (
	"errors"
	"fmt"

	"asin-tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyKeepaAPIKey holds the vendor credential. It is hidden from the
// settings listing and cannot be overwritten through the bulk save.
const KeyKeepaAPIKey = "keepa_api_key"

// Store reads and writes key/value settings rows.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(key string) (string, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return setting.Value, nil
}

// Set upserts one key.
func (s *Store) Set(key, value string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// All returns every setting except the vendor credential.
func (s *Store) All() (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.Where("key <> ?", KeyKeepaAPIKey).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	result := make(map[string]string, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Value
	}
	return result, nil
}

// KeepaAPIKey implements ingest.CredentialSource.
func (s *Store) KeepaAPIKey() (string, error) {
	return s.Get(KeyKeepaAPIKey)
}
