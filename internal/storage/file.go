package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// FileBackend keeps every key in its own file.
// Sets are JSON lists, maps are JSON objects keyed by the decimal id, text is stored verbatim.
type FileBackend struct {
	paths map[string]string
}

// NewFileBackend maps logical keys to file paths
func NewFileBackend(paths map[string]string) *FileBackend {
	copied := make(map[string]string, len(paths))
	for k, v := range paths {
		copied[k] = v
	}
	return &FileBackend{paths: copied}
}

// Path returns the file used for key
func (b *FileBackend) Path(key string) (string, error) {
	path, ok := b.paths[key]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return filepath.Clean(path), nil
}

func (b *FileBackend) read(key string) ([]byte, string, error) {
	path, err := b.Path(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, path, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, path, fmt.Errorf("read %s: %w", path, err)
	}
	return data, path, nil
}

func (b *FileBackend) write(key string, data []byte) error {
	path, err := b.Path(key)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// ReadIDSet reads a JSON list of integers
func (b *FileBackend) ReadIDSet(ctx context.Context, key string) ([]int64, error) {
	data, path, err := b.read(key)
	if err != nil {
		return nil, err
	}
	ids, err := decodeIDSet(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ids, nil
}

// WriteIDSet writes ids as a sorted JSON list
func (b *FileBackend) WriteIDSet(ctx context.Context, key string, ids []int64) error {
	return b.write(key, encodeIDSet(ids))
}

// ReadIDMap reads a JSON object of id to integer
func (b *FileBackend) ReadIDMap(ctx context.Context, key string) (map[int64]int64, error) {
	data, path, err := b.read(key)
	if err != nil {
		return nil, err
	}
	values, err := decodeIDMap(data)
	if err != nil {
		return values, fmt.Errorf("decode %s: %w", path, err)
	}
	return values, nil
}

// WriteIDMap writes values as a JSON object ordered by id
func (b *FileBackend) WriteIDMap(ctx context.Context, key string, values map[int64]int64) error {
	return b.write(key, encodeIDMap(values))
}

// ReadLines returns the raw lines of a text file
func (b *FileBackend) ReadLines(ctx context.Context, key string) ([]string, error) {
	data, _, err := b.read(key)
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

// WriteDefaultText replaces the file with text
func (b *FileBackend) WriteDefaultText(ctx context.Context, key string, text string) error {
	return b.write(key, []byte(text))
}

// Ping always succeeds for local files
func (b *FileBackend) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (b *FileBackend) Close() error {
	return nil
}

// writeAtomic writes through a temp file in the same directory and renames it into place
func writeAtomic(path string, content []byte) error {
	parentDir := filepath.Dir(path)
	if err := os.MkdirAll(parentDir, defaultDirPerm); err != nil {
		return fmt.Errorf("ensure dir %s: %w", parentDir, err)
	}

	tmp, err := os.CreateTemp(parentDir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}

	// Best effort directory sync; ignore failures.
	if dir, err := os.Open(parentDir); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}
