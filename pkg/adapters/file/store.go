package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/caregraph/pkg/domain"
)

// errInvalidID is returned for thread IDs that cannot be used as file names.
var errInvalidID = errors.New("invalid thread id")

// Store implements ports.ThreadStore using the local filesystem.
// It stores threads as JSON files in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".caregraph/threads".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".caregraph", "threads")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) || strings.Contains(threadID, "..") {
		return "", fmt.Errorf("%w: %q", errInvalidID, threadID)
	}
	return filepath.Join(s.BasePath, threadID+".json"), nil
}

// Save persists the thread to a JSON file atomically.
func (s *Store) Save(ctx context.Context, threadID string, thread *domain.Thread) error {
	destPath, err := s.path(threadID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	if err := writeAtomic(s.BasePath, destPath, data); err != nil {
		return fmt.Errorf("failed to write thread %s: %w", threadID, err)
	}
	return nil
}

// Load retrieves the thread from its JSON file.
// IDs that cannot name a file are reported as not found.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	filePath, err := s.path(threadID)
	if err != nil {
		return nil, domain.ErrThreadNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to read thread file: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &thread, nil
}

// Delete removes the thread file. Deleting a missing thread is not an error.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	filePath, err := s.path(threadID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete thread file: %w", err)
	}
	return nil
}

// List returns all stored thread IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}
	return threads, nil
}
