// Package backup takes consistent snapshots of the MooseDB database file and
// ships them, snappy-compressed, to an object storage target.
package backup

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"

	"github.com/moosedb/moosedb/internal/storage"
	"github.com/moosedb/moosedb/internal/store"
)

// Extension is the suffix of every snapshot object.
const Extension = ".sqlite.snappy"

// Snapshot describes an uploaded snapshot.
type Snapshot struct {
	Key            string    `json:"key"`
	RawBytes       int64     `json:"raw_bytes"`
	CompressedSize int64     `json:"compressed_bytes"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service creates, lists and restores snapshots.
type Service struct {
	store  *store.Store
	target storage.ObjectStorage
	prefix string
	now    func() time.Time
}

// New creates a Service writing under prefix in target.
func New(s *store.Store, target storage.ObjectStorage, prefix string) *Service {
	return &Service{
		store:  s,
		target: target,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Create snapshots the live database with VACUUM INTO and uploads it.
func (b *Service) Create(ctx context.Context) (*Snapshot, error) {
	workDir, err := os.MkdirTemp("", "moosedb-backup-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	rawPath := filepath.Join(workDir, "snapshot.sqlite")
	if err := b.vacuumInto(ctx, rawPath); err != nil {
		return nil, err
	}

	compressedPath := rawPath + ".snappy"
	rawBytes, err := compressFile(rawPath, compressedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	stat, err := os.Stat(compressedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	created := b.now().UTC()
	key := b.keyFor(created)
	if err := b.target.Upload(ctx, compressedPath, key); err != nil {
		return nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}

	log.Printf("backup: uploaded %s (%d bytes, %d compressed)", key, rawBytes, stat.Size())
	return &Snapshot{
		Key:            key,
		RawBytes:       rawBytes,
		CompressedSize: stat.Size(),
		CreatedAt:      created,
	}, nil
}

// List returns the stored snapshots, oldest first.
func (b *Service) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := b.target.List(ctx, b.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	snapshots := make([]storage.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Path, Extension) {
			snapshots = append(snapshots, obj)
		}
	}
	return snapshots, nil
}

// Restore downloads the snapshot stored at key and writes the decompressed
// database to dest. dest must not exist.
func (b *Service) Restore(ctx context.Context, key, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("restore target %s already exists", dest)
	}

	workDir, err := os.MkdirTemp("", "moosedb-restore-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	compressedPath := filepath.Join(workDir, "snapshot.sqlite.snappy")
	if err := b.target.Download(ctx, key, compressedPath); err != nil {
		return fmt.Errorf("failed to download snapshot: %w", err)
	}
	if err := decompressFile(compressedPath, dest); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	log.Printf("backup: restored %s to %s", key, dest)
	return nil
}

func (b *Service) vacuumInto(ctx context.Context, dest string) error {
	conn, err := b.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return store.MapError(err, "Failed to snapshot database")
	}
	return nil
}

func (b *Service) keyFor(t time.Time) string {
	name := fmt.Sprintf("moosedb-%s-%s%s", t.Format("20060102T150405Z"), store.RandomDigits(4), Extension)
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func compressFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	w := snappy.NewBufferedWriter(out)
	n, err := io.Copy(w, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, snappy.NewReader(in)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
