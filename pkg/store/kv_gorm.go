package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVModel is the GORM model backing GormKV. Values are stored JSON-encoded.
type KVModel struct {
	Namespace string         `gorm:"primaryKey"`
	Key       string         `gorm:"primaryKey"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (KVModel) TableName() string { return "console_kv" }

// GormKV implements KV using GORM + Postgres. Namespace separates consoles
// sharing one database.
type GormKV struct {
	db        *gorm.DB
	namespace string
}

// NewGormKV opens the DB and runs auto-migrations.
func NewGormKV(dsn, namespace string) (*GormKV, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newGormKV(db, namespace)
}

func newGormKV(db *gorm.DB, namespace string) (*GormKV, error) {
	if err := db.AutoMigrate(&KVModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if namespace == "" {
		namespace = "default"
	}
	return &GormKV{db: db, namespace: namespace}, nil
}

func (s *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var model KVModel
	err := s.db.WithContext(ctx).First(&model, "namespace = ? AND key = ?", s.namespace, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var value string
	if err := json.Unmarshal(model.Value, &value); err != nil {
		return "", false, fmt.Errorf("decode %s: %w", key, err)
	}
	return value, true, nil
}

func (s *GormKV) Set(ctx context.Context, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	model := KVModel{
		Namespace: s.namespace,
		Key:       key,
		Value:     datatypes.JSON(encoded),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("namespace = ? AND key IN ?", s.namespace, keys).
		Delete(&KVModel{}).Error
}

func (s *GormKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
