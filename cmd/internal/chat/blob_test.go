package chat

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeImageDataURL(t *testing.T) {
	t.Parallel()

	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name     string
		in       string
		wantType string
		wantErr  bool
	}{
		{
			name:     "data url with content type",
			in:       "data:image/png;base64," + encoded,
			wantType: "image/png",
		},
		{
			name:     "bare base64",
			in:       encoded,
			wantType: "",
		},
		{
			name:    "empty",
			in:      "   ",
			wantErr: true,
		},
		{
			name:    "malformed data url",
			in:      "data:image/png;base64",
			wantErr: true,
		},
		{
			name:    "invalid base64",
			in:      "data:image/png;base64,***",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, contentType, err := DecodeImageDataURL(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if contentType != tc.wantType {
				t.Fatalf("content type: got %q want %q", contentType, tc.wantType)
			}
			if string(data) != string(pngBytes) {
				t.Fatalf("decoded bytes mismatch")
			}
		})
	}
}

func TestFSBlobStore_Upload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := NewFSBlobStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := store.Upload(context.Background(), []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url: %q", url)
	}

	name := strings.TrimPrefix(url, "/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("blob content mismatch: %q", data)
	}
}

func TestFSBlobStore_Upload_Rejections(t *testing.T) {
	t.Parallel()

	store, err := NewFSBlobStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Upload(context.Background(), nil, "image/png"); err == nil {
		t.Fatalf("expected error for empty blob")
	}

	big := make([]byte, maxImageBytes+1)
	if _, err := store.Upload(context.Background(), big, "image/png"); err == nil {
		t.Fatalf("expected error for oversize blob")
	}
}
