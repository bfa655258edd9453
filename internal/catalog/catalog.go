// Package catalog provides a database-backed registry of built heap-dump
// indexes. It lets a heapdumpsvc instance (or the CLI, across invocations)
// find an already-built index for a dump without re-stat-ing or re-parsing
// it, and records where the index bundle was uploaded to object storage.
//
// It is a front-end optimization only: internal/heapdump.Open always
// remains the source of truth for index validity (it checks the on-disk
// index files and their magic/version headers on every open). The catalog
// just avoids one extra Open round-trip when the caller already knows which
// index directory to pass in.
package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// IndexRecord is one row per heap dump that has had an index built for it.
type IndexRecord struct {
	ID uint `gorm:"primaryKey"`

	// DumpPath is the absolute path to the .hprof file the index was built from.
	DumpPath string `gorm:"column:dump_path;uniqueIndex;size:1024"`

	// DumpContentHash is a content digest (sha256 of the dump's header plus
	// size) used to detect a dump that changed on disk since the index was
	// built, independent of DumpPath.
	DumpContentHash string `gorm:"column:dump_content_hash;size:64;index"`

	// IndexDir is where the six index files live (see heapdump.Options.IndexDir).
	IndexDir string `gorm:"column:index_dir;size:1024"`

	// FormatVersion is the on-disk index format version, copied from the
	// index header at build time so a catalog reader can tell a stale entry
	// apart from a format the current binary no longer understands.
	FormatVersion int `gorm:"column:format_version"`

	ObjectCount int64 `gorm:"column:object_count"`

	// DominatorCoverage records what retained-size computation the index
	// carries: "" (approximate only), "hybrid:<N>" (top N classes got exact
	// dominator-tree retained sizes), or "full" (every object did).
	DominatorCoverage string `gorm:"column:dominator_coverage;size:32"`

	BuiltAt time.Time `gorm:"column:built_at"`

	// UploadedKey is the object-storage key the index bundle was archived
	// under, empty if it has never been uploaded.
	UploadedKey string     `gorm:"column:uploaded_key;size:512"`
	UploadedAt  *time.Time `gorm:"column:uploaded_at"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name so it doesn't depend on gorm's pluralization
// of a name that is also a Go package name.
func (IndexRecord) TableName() string {
	return "heap_index_catalog"
}

// Store records and looks up built heap-dump indexes.
type Store interface {
	// Upsert records (or refreshes) the catalog entry for dumpPath.
	Upsert(ctx context.Context, rec *IndexRecord) error

	// Lookup returns the catalog entry for dumpPath, if one exists.
	Lookup(ctx context.Context, dumpPath string) (*IndexRecord, bool, error)

	// MarkUploaded records that the index bundle for dumpPath was archived
	// to object storage under key.
	MarkUploaded(ctx context.Context, dumpPath string, key string, uploadedAt time.Time) error

	// List returns every catalog entry, most recently built first.
	List(ctx context.Context) ([]*IndexRecord, error)

	// Delete removes the catalog entry for dumpPath. It is not an error if
	// no entry exists.
	Delete(ctx context.Context, dumpPath string) error
}

// Migrate creates or updates the catalog table. Callers own the *gorm.DB
// lifecycle (see internal/repository.NewGormDB for how one is constructed).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&IndexRecord{})
}
