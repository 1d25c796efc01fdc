package files

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/blob"
	"github.com/noisersup/filesmanager/models"
)

// Widths of the previews the thumbnail worker derives, largest first
var ThumbnailWidths = []int{500, 250, 100}

type Content struct {
	Data        []byte
	ContentType string
	Name        string
}

// ReadContent serves the bytes of a file, or of one of its previews when size
// is non-zero. requester is uuid.Nil for anonymous reads. Private files of
// other users look exactly like missing ones.
func (s *Service) ReadContent(ctx context.Context, requester, id uuid.UUID, size int) (*Content, error) {
	f, err := s.db.GetFile(ctx, id)
	if errors.Is(err, models.ErrFileNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if !f.IsPublic && (requester == uuid.Nil || requester != f.UserId) {
		return nil, models.ErrNotFound
	}
	if f.Type == models.TypeFolder {
		return nil, models.Invalid("A folder doesn't have content")
	}

	path := f.LocalPath
	if size != 0 {
		if !validWidth(size) {
			return nil, models.ErrNotFound
		}
		path = blob.DerivativePath(f.LocalPath, size)
	}

	data, err := s.blobs.Read(path)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return &Content{Data: data, ContentType: ContentType(f.Name), Name: f.Name}, nil
}

// ContentType guesses from the extension of name
func ContentType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func validWidth(w int) bool {
	for _, v := range ThumbnailWidths {
		if v == w {
			return true
		}
	}
	return false
}
