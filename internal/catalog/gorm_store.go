package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore. db must already have Migrate run
// against it once.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Upsert records (or refreshes) the catalog entry for rec.DumpPath.
func (s *GormStore) Upsert(ctx context.Context, rec *IndexRecord) error {
	if rec.DumpPath == "" {
		return errors.New("catalog: dump path is required")
	}
	if rec.BuiltAt.IsZero() {
		rec.BuiltAt = time.Now()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "dump_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"dump_content_hash", "index_dir", "format_version",
				"object_count", "dominator_coverage", "built_at", "updated_at",
			}),
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("catalog: upsert failed: %w", err)
	}
	return nil
}

// Lookup returns the catalog entry for dumpPath, if one exists.
func (s *GormStore) Lookup(ctx context.Context, dumpPath string) (*IndexRecord, bool, error) {
	var rec IndexRecord
	err := s.db.WithContext(ctx).Where("dump_path = ?", dumpPath).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("catalog: lookup failed: %w", err)
	}
	return &rec, true, nil
}

// MarkUploaded records that the index bundle for dumpPath was archived to
// object storage under key.
func (s *GormStore) MarkUploaded(ctx context.Context, dumpPath string, key string, uploadedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&IndexRecord{}).
		Where("dump_path = ?", dumpPath).
		Updates(map[string]interface{}{
			"uploaded_key": key,
			"uploaded_at":  uploadedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("catalog: mark uploaded failed: %w", err)
	}
	return nil
}

// List returns every catalog entry, most recently built first.
func (s *GormStore) List(ctx context.Context) ([]*IndexRecord, error) {
	var recs []*IndexRecord
	err := s.db.WithContext(ctx).Order("built_at DESC").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list failed: %w", err)
	}
	return recs, nil
}

// Delete removes the catalog entry for dumpPath.
func (s *GormStore) Delete(ctx context.Context, dumpPath string) error {
	err := s.db.WithContext(ctx).Where("dump_path = ?", dumpPath).Delete(&IndexRecord{}).Error
	if err != nil {
		return fmt.Errorf("catalog: delete failed: %w", err)
	}
	return nil
}
