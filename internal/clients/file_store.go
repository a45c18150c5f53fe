package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps the registry as one JSON document on local disk. It has no
// cross-process lock; run a single service instance per file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) ([]Client, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Client{}, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var list []Client
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if list == nil {
		list = []Client{}
	}
	return list, nil
}

// Save writes to a temporary file in the registry's directory and renames it
// over the old document, so readers never observe a partial write.
func (s *FileStore) Save(ctx context.Context, list []Client) error {
	if list == nil {
		list = []Client{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary registry file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	tmpPath = ""

	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			slog.Debug("Failed to sync registry directory", "error", err)
		}
		d.Close()
	}

	slog.Debug("Registry saved", "records", len(list))
	return nil
}

func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	return func() {}, nil
}
