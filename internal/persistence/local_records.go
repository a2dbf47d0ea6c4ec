package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nucleus/provision-core/internal/identity"
)

// storedRecord is one record in the offline store. The row ID doubles as
// the record's remote ID.
type storedRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Collection string `gorm:"type:text;not null;index"`
	LocalID    string `gorm:"type:text;not null;uniqueIndex"`
	Payload    string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (storedRecord) TableName() string { return "stored_records" }

// LocalRecords keeps records in a SQLite file when no remote backend is
// configured.
type LocalRecords struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenLocalRecords opens (or creates) the store at path.
func OpenLocalRecords(path string, log *slog.Logger) (*LocalRecords, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer

	if err := db.AutoMigrate(&storedRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &LocalRecords{db: db, logger: log}, nil
}

// Save implements identity.RecordSaver.
func (l *LocalRecords) Save(ctx context.Context, collection string, records []*identity.Record) ([]identity.Acknowledgement, error) {
	acks := make([]identity.Acknowledgement, 0, len(records))
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range records {
			if r.LocalID == uuid.Nil {
				return fmt.Errorf("record without local id in %s", collection)
			}
			payload, err := json.Marshal(r.Fields)
			if err != nil {
				return fmt.Errorf("encode record %s: %w", r.LocalID, err)
			}

			var row storedRecord
			err = tx.Where("local_id = ?", r.LocalID.String()).First(&row).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row = storedRecord{Collection: collection, LocalID: r.LocalID.String(), Payload: string(payload)}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("insert record %s: %w", r.LocalID, err)
				}
			case err != nil:
				return fmt.Errorf("lookup record %s: %w", r.LocalID, err)
			default:
				if err := tx.Model(&row).Update("payload", string(payload)).Error; err != nil {
					return fmt.Errorf("update record %s: %w", r.LocalID, err)
				}
			}
			acks = append(acks, identity.Acknowledgement{LocalID: r.LocalID, RemoteID: strconv.FormatUint(uint64(row.ID), 10)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acks, nil
}

// Load returns every stored record of collection as a synced record.
func (l *LocalRecords) Load(ctx context.Context, collection string) ([]*identity.Record, error) {
	var rows []storedRecord
	if err := l.db.WithContext(ctx).Where("collection = ?", collection).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}

	out := make([]*identity.Record, 0, len(rows))
	for _, row := range rows {
		localID, err := uuid.Parse(row.LocalID)
		if err != nil {
			l.logger.Warn("skipping stored record with bad local id", "local_id", row.LocalID)
			continue
		}
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(row.Payload), &fields); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", row.LocalID, err)
		}
		out = append(out, &identity.Record{
			LocalID:    localID,
			RemoteID:   strconv.FormatUint(uint64(row.ID), 10),
			SyncStatus: identity.Synced,
			Fields:     fields,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return out, nil
}

// Close closes the database.
func (l *LocalRecords) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

var _ identity.RecordSaver = (*LocalRecords)(nil)
