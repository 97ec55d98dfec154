// -----------------------------------------------------------------------
// File Storage - filesystem sink for rendered artifacts
// -----------------------------------------------------------------------

package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Storage writes artifacts under a root directory and addresses them with
// "file://<relative path>" locators. The locator is opaque to callers; only
// this package interprets it.
type Storage struct {
	root   string
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.FileStorage = (*Storage)(nil)

const locatorPrefix = "file://"

// NewStorage creates a file storage rooted at dir
func NewStorage(root string, logger arbor.ILogger) (*Storage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Storage{
		root:   root,
		logger: logger,
	}, nil
}

// Save writes data under folder/filename and returns its locator
func (s *Storage) Save(ctx context.Context, data []byte, folder, filename string) (string, error) {
	rel := filepath.Join(sanitize(folder), sanitize(filename))
	path := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug().Str("path", rel).Int("bytes", len(data)).Msg("Artifact stored")
	return locatorPrefix + filepath.ToSlash(rel), nil
}

// Get returns the bytes for a locator, interfaces.ErrNotFound if absent
func (s *Storage) Get(ctx context.Context, locator string) ([]byte, error) {
	rel, ok := strings.CutPrefix(locator, locatorPrefix)
	if !ok {
		return nil, fmt.Errorf("unrecognized locator: %s", locator)
	}

	path := filepath.Join(s.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// sanitize strips path traversal from a caller-supplied path element
func sanitize(elem string) string {
	elem = strings.ReplaceAll(elem, "..", "")
	return strings.Trim(filepath.Clean("/"+elem), "/")
}
