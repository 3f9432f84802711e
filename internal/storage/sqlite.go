package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roomBlob struct {
	RoomKey         string `gorm:"column:room_key;primaryKey;size:190;not null"`
	Payload         []byte `gorm:"column:payload;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

func (roomBlob) TableName() string {
	return "room_blobs"
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate creates or updates the room blob schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&roomBlob{})
}

// SQLiteStore persists room blobs in a single SQLite table.
type SQLiteStore struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &SQLiteStore{db: db, clock: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var record roomBlob
	err := s.db.WithContext(ctx).Where("room_key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Payload, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte) error {
	record := roomBlob{
		RoomKey:         key,
		Payload:         payload,
		UpdatedAtMillis: s.clock().UTC().UnixMilli(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at_ms"}),
	}).Create(&record).Error
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("room_key = ?", key).Delete(&roomBlob{}).Error
}
