// Package thumbnail derives the scaled previews of uploaded images.
package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/blob"
	"github.com/noisersup/filesmanager/files"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
	"github.com/noisersup/filesmanager/queue"
)

type Worker struct {
	db        models.Database
	blobs     *blob.Store
	maxPixels int64
	l         *logger.Logger
}

func NewWorker(db models.Database, blobs *blob.Store, maxPixels int64, l *logger.Logger) *Worker {
	return &Worker{db: db, blobs: blobs, maxPixels: maxPixels, l: l}
}

// Handle processes one fileQueue job. Running it again rewrites the same
// bytes; every preview is swapped in atomically.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	var job models.FileJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return queue.Permanent(fmt.Errorf("malformed job: %w", err))
	}
	fileId, err := uuid.Parse(job.FileId)
	if err != nil {
		return queue.Permanent(errors.New("Missing fileId"))
	}
	userId, err := uuid.Parse(job.UserId)
	if err != nil {
		return queue.Permanent(errors.New("Missing userId"))
	}

	f, err := w.db.GetUserFile(ctx, fileId, userId)
	if errors.Is(err, models.ErrFileNotFound) {
		return errors.New("File not found")
	}
	if err != nil {
		return err
	}
	if f.Type != models.TypeImage {
		return queue.Permanent(fmt.Errorf("file %s is a %s, not an image", f.Id, f.Type))
	}

	data, err := w.blobs.Read(f.LocalPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.LocalPath, err)
	}
	src, err := Decode(data, w.maxPixels)
	if err != nil {
		return queue.Permanent(err)
	}

	for _, width := range files.ThumbnailWidths {
		out, err := src.Resize(width)
		if err != nil {
			return err
		}
		if err := w.blobs.Replace(blob.DerivativePath(f.LocalPath, width), out); err != nil {
			return fmt.Errorf("writing %dpx preview: %w", width, err)
		}
	}
	w.l.LogV("thumbnails written for %s", f.Id)
	return nil
}
