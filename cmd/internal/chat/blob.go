package chat

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxImageBytes = 8 << 20 // 8 MiB decoded

// BlobStore uploads raw image bytes and returns a reference URL.
// Upload failure aborts the whole send; nothing is persisted after it fails.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// FSBlobStore stores blobs on the local filesystem and serves them under a
// URL prefix (mounted by the HTTP layer).
type FSBlobStore struct {
	dir       string
	urlPrefix string
}

// NewFSBlobStore constructs a filesystem blob store rooted at dir.
func NewFSBlobStore(dir, urlPrefix string) (*FSBlobStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("chat: empty blob dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &FSBlobStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the backing directory (for the HTTP file server mount).
func (s *FSBlobStore) Dir() string { return s.dir }

// Upload writes data under a random name and returns its URL.
func (s *FSBlobStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("chat: empty blob")
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("chat: blob too large: %d bytes", len(data))
	}

	name := randomBlobName() + extForContentType(contentType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.urlPrefix + "/" + name, nil
}

// DecodeImageDataURL parses a base64 data URL ("data:image/png;base64,...")
// and returns the raw bytes plus content type. Bare base64 is accepted with
// an unknown content type for compatibility with older clients.
func DecodeImageDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", errors.New("empty image")
	}

	contentType := ""
	if strings.HasPrefix(s, "data:") {
		meta, rest, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, "", errors.New("malformed data url")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		s = rest
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return data, contentType, nil
}

func extForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func randomBlobName() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "blob"
	}
	return hex.EncodeToString(b)
}
