package file

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/bwmarrin/snowflake"
)

// ErrEmptyUpload is returned when an upload carries no bytes.
var ErrEmptyUpload = domain.ErrEmptyUpload

// DefaultMaxUploadSize bounds a single attachment (10 MiB).
const DefaultMaxUploadSize = 10 << 20

// AttachmentStore implements ports.AttachmentStore on the local filesystem.
// Every upload gets a snowflake ID so that two files with the same name never collide.
type AttachmentStore struct {
	dir     string
	maxSize int64
	node    *snowflake.Node
}

// AttachmentOption configures the AttachmentStore.
type AttachmentOption func(*AttachmentStore)

// WithMaxUploadSize sets the per-file size limit.
func WithMaxUploadSize(n int64) AttachmentOption {
	return func(s *AttachmentStore) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// NewAttachmentStore creates a store rooted at dir. nodeID distinguishes
// instances sharing the same directory and must be in [0, 1023].
func NewAttachmentStore(dir string, nodeID int64, opts ...AttachmentOption) (*AttachmentStore, error) {
	if dir == "" {
		dir = filepath.Join(".caregraph", "uploads")
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create id node: %w", err)
	}
	s := &AttachmentStore{dir: dir, maxSize: DefaultMaxUploadSize, node: node}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory uploads are written to.
func (s *AttachmentStore) Dir() string { return s.dir }

// Put stores the content of r and returns the stored file path as its reference.
func (s *AttachmentStore) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", domain.ErrUploadTooLarge, s.maxSize)
	}

	name := s.node.Generate().String() + "_" + cleanName(filename)
	dest := filepath.Join(s.dir, name)
	if err := writeAtomic(s.dir, dest, data); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dest, nil
}

// cleanName keeps the base name of an uploaded file, without path components or spaces.
func cleanName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == ']' || r == '[':
			return -1
		}
		return r
	}, base)
}
