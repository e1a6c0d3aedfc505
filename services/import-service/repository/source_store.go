package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgaws "github.com/yashrajoria/construction-backend/pkg/aws"
)

func sourceName(jobID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return jobID + ext
}

// DiskSourceStore writes uploads under a local directory.
type DiskSourceStore struct {
	dir string
}

func NewDiskSourceStore(dir string) (*DiskSourceStore, error) {
	if dir == "" {
		dir = "./data/bulk_imports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskSourceStore{dir: dir}, nil
}

func (s *DiskSourceStore) Put(_ context.Context, jobID, filename string, data []byte) (string, error) {
	path := filepath.Join(s.dir, sourceName(jobID, filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist file: %w", err)
	}
	return path, nil
}

// path keeps keys inside the storage directory.
func (s *DiskSourceStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *DiskSourceStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSourceNotFound
	}
	return data, err
}

func (s *DiskSourceStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// S3SourceStore keeps uploads in a bucket so any worker replica can read them.
type S3SourceStore struct {
	objects *pkgaws.S3ObjectStore
}

func NewS3SourceStore(objects *pkgaws.S3ObjectStore) *S3SourceStore {
	return &S3SourceStore{objects: objects}
}

func (s *S3SourceStore) Put(ctx context.Context, jobID, filename string, data []byte) (string, error) {
	return s.objects.Put(ctx, sourceName(jobID, filename), data, mimetype.Detect(data).String())
}

func (s *S3SourceStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.objects.Get(ctx, key)
	if errors.Is(err, pkgaws.ErrObjectNotFound) {
		return nil, ErrSourceNotFound
	}
	return data, err
}

func (s *S3SourceStore) Delete(ctx context.Context, key string) error {
	return s.objects.Delete(ctx, key)
}
