package tonconnect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// StorageRecord is the table backing BunStorage.
type StorageRecord struct {
	bun.BaseModel `bun:"table:tonconnect_storage"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value" json:"value"`
	UpdatedAt time.Time `bun:"updated_at" json:"updated_at"`
}

// BunStorage persists connection state in Postgres through bun.
type BunStorage struct {
	db *bun.DB
}

func NewBunStorage(db *bun.DB) *BunStorage {
	return &BunStorage{db: db}
}

// Migrate creates the backing table if it does not exist.
func (s *BunStorage) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*StorageRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create tonconnect_storage table: %w", err)
	}
	return nil
}

func (s *BunStorage) Set(ctx context.Context, key, value string) error {
	rec := &StorageRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert storage key %s: %w", key, err)
	}
	return nil
}

func (s *BunStorage) Get(ctx context.Context, key string) (string, error) {
	rec := new(StorageRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrStorageKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select storage key %s: %w", key, err)
	}
	return rec.Value, nil
}

func (s *BunStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StorageRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete storage key %s: %w", key, err)
	}
	return nil
}
