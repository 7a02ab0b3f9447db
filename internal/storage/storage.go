// Package storage persists rendered clip artifacts. Keys are
// content-addressed per job and write-once; a second write to the same
// key is always a programming error upstream.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore stores immutable artifacts under hierarchical keys.
type ObjectStore interface {
	// Put streams src into key and returns the stored location.
	Put(ctx context.Context, key string, src io.Reader) (string, error)
	// PutFile copies a local file into key.
	PutFile(ctx context.Context, key, srcPath string) (string, error)
	// Exists reports whether key already holds an object.
	Exists(key string) (bool, error)
	// Location resolves key to its stored location without writing.
	Location(key string) string
}

// ClipKey is the canonical key for a rendered clip.
func ClipKey(jobID int64, clipID string) string {
	return fmt.Sprintf("jobs/%d/clips/%s.mp4", jobID, clipID)
}

// FileStore is an ObjectStore rooted in a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// ErrKeyExists marks a rejected duplicate write.
var ErrKeyExists = fmt.Errorf("storage key already exists")

func (s *FileStore) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FileStore) Exists(key string) (bool, error) {
	_, err := os.Stat(s.Location(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Put writes via a temp file and renames, so readers never observe a
// partial object.
func (s *FileStore) Put(ctx context.Context, key string, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest := s.Location(key)
	if exists, err := s.Exists(key); err != nil {
		return "", err
	} else if exists {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	return dest, nil
}

func (s *FileStore) PutFile(ctx context.Context, key, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer src.Close()
	return s.Put(ctx, key, src)
}
