// Package media persists inbound attachments and extracts text from
// images via the OCR endpoint.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	. "github.com/roelfdiedericks/waclaw/internal/logging"
	"github.com/roelfdiedericks/waclaw/internal/paths"
)

// MaxMediaBytes is the maximum allowed attachment size (5MB)
const MaxMediaBytes = 5 * 1024 * 1024

// Store saves attachment bytes to disk under a dedicated directory so
// external tools (OCR, the agent) can reference them by path.
type Store struct {
	baseDir string
	mu      sync.Mutex // Protects concurrent saves
}

// NewStore creates a media store rooted at dir, expanding ~ and
// creating the directory with restricted permissions.
func NewStore(dir string) (*Store, error) {
	dir, err := paths.ExpandTilde(dir)
	if err != nil {
		return nil, err
	}
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	L_info("media: store initialized", "dir", dir)
	return &Store{baseDir: dir}, nil
}

// Save stores attachment bytes under inbound/ with a timestamped
// unique filename, returning the absolute path.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if int64(len(data)) > MaxMediaBytes {
		return "", fmt.Errorf("attachment size %d exceeds limit %d", len(data), MaxMediaBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.baseDir, "inbound")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102-150405"), uuid.New().String()[:8], ext)
	absPath := filepath.Join(dir, filename)

	if err := os.WriteFile(absPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	L_debug("media: saved attachment", "path", absPath, "size", len(data))
	return absPath, nil
}

// BaseDir returns the base directory of the media store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// MimeToExt returns a file extension for common image MIME types.
func MimeToExt(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
