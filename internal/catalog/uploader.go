package catalog

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/btraceio/heapdump/internal/storage"
	"github.com/btraceio/heapdump/pkg/compression"
)

// Uploader archives a completed index directory and pushes it to object
// storage, recording the resulting key in the catalog so a second host
// analyzing the same dump can fetch a ready-made index instead of
// re-parsing it. Nil fields disable the corresponding step: a nil Storage
// makes Upload a no-op error, a nil Catalog just skips the MarkUploaded
// bookkeeping.
type Uploader struct {
	Storage    storage.Storage
	Compressor compression.Compressor
	Catalog    Store
}

// NewUploader builds an Uploader. compressor may be nil, in which case
// compression.Default() is used.
func NewUploader(store storage.Storage, compressor compression.Compressor, catalogStore Store) *Uploader {
	if compressor == nil {
		compressor = compression.Default()
	}
	return &Uploader{Storage: store, Compressor: compressor, Catalog: catalogStore}
}

// Upload tars indexDir, compresses the archive, and uploads it under a key
// derived from a SHA-256 hash of the dumpPath string. It returns the object
// key.
func (u *Uploader) Upload(ctx context.Context, dumpPath, indexDir string) (string, error) {
	if u.Storage == nil {
		return "", fmt.Errorf("catalog: uploader has no storage backend configured")
	}

	archive, err := tarDirectory(indexDir)
	if err != nil {
		return "", fmt.Errorf("catalog: archiving index directory: %w", err)
	}

	compressed, err := u.Compressor.Compress(archive)
	if err != nil {
		return "", fmt.Errorf("catalog: compressing index archive: %w", err)
	}

	key := indexObjectKey(dumpPath, u.Compressor.Name())
	if err := u.Storage.Upload(ctx, key, bytes.NewReader(compressed)); err != nil {
		return "", fmt.Errorf("catalog: uploading index archive: %w", err)
	}

	if u.Catalog != nil {
		if err := u.Catalog.MarkUploaded(ctx, dumpPath, key, time.Now()); err != nil {
			return key, fmt.Errorf("catalog: recording upload: %w", err)
		}
	}

	return key, nil
}

// indexObjectKey derives a stable object key from a SHA-256 hash of the
// dumpPath string (not of the dump's contents), so re-uploading the index
// for the same path overwrites the same object instead of accumulating
// duplicates.
func indexObjectKey(dumpPath, compressorName string) string {
	sum := sha256.Sum256([]byte(dumpPath))
	return fmt.Sprintf("heap-index/%s.tar.%s", hex.EncodeToString(sum[:]), compressorName)
}

// tarDirectory archives every regular file under dir into an in-memory tar,
// using paths relative to dir as archive entry names.
func tarDirectory(dir string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
