// Package files owns the per-user hierarchy of folders, files and images.
package files

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/blob"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
)

const PageSize = 20

type Service struct {
	db    models.Database
	blobs *blob.Store
	jobs  models.Publisher
	l     *logger.Logger
}

func NewService(db models.Database, blobs *blob.Store, jobs models.Publisher, l *logger.Logger) *Service {
	return &Service{db: db, blobs: blobs, jobs: jobs, l: l}
}

type CreateRequest struct {
	Name     string           `json:"name"`
	Type     models.FileType  `json:"type"`
	ParentId models.ParentRef `json:"parentId"`
	IsPublic bool             `json:"isPublic"`
	Data     string           `json:"data"`
}

// CreateEntry validates req, writes the content of files and images to the
// blob directory and then records the metadata. Images get a thumbnail job.
func (s *Service) CreateEntry(ctx context.Context, owner uuid.UUID, req CreateRequest) (*models.File, error) {
	if req.Name == "" {
		return nil, models.Invalid("Missing name")
	}
	if !req.Type.Valid() {
		return nil, models.Invalid("Missing type or invalid type")
	}
	if req.Type != models.TypeFolder && req.Data == "" {
		return nil, models.Invalid("Missing data")
	}
	if err := s.checkParent(ctx, owner, req.ParentId); err != nil {
		return nil, err
	}

	f := &models.File{
		Id:       uuid.New(),
		UserId:   owner,
		Name:     req.Name,
		Type:     req.Type,
		ParentId: req.ParentId,
		IsPublic: req.IsPublic,
	}

	if f.Type != models.TypeFolder {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, models.Invalid("Missing data")
		}
		f.LocalPath, err = s.blobs.Save(data)
		if err != nil {
			return nil, fmt.Errorf("saving content: %w", err)
		}
	}

	if err := s.db.NewFile(ctx, f); err != nil {
		if f.LocalPath != "" {
			if rmErr := s.blobs.Remove(f.LocalPath); rmErr != nil {
				s.l.SWarn("CreateEntry", "orphaned blob %s: %s", f.LocalPath, rmErr.Error())
			}
		}
		return nil, fmt.Errorf("saving metadata: %w", err)
	}

	if f.Type == models.TypeImage {
		s.scheduleThumbnails(ctx, f)
	}
	return f, nil
}

// checkParent accepts the root or a folder owned by owner
func (s *Service) checkParent(ctx context.Context, owner uuid.UUID, parent models.ParentRef) error {
	id, ok := parent.Folder()
	if !ok {
		return nil
	}
	p, err := s.db.GetUserFile(ctx, id, owner)
	if errors.Is(err, models.ErrFileNotFound) {
		return models.Invalid("Parent not found")
	}
	if err != nil {
		return fmt.Errorf("looking up parent: %w", err)
	}
	if p.Type != models.TypeFolder {
		return models.Invalid("Parent is not a folder")
	}
	return nil
}

// scheduleThumbnails never fails the upload, a lost job only costs previews
func (s *Service) scheduleThumbnails(ctx context.Context, f *models.File) {
	payload, err := json.Marshal(models.FileJob{FileId: f.Id.String(), UserId: f.UserId.String()})
	if err == nil {
		err = s.jobs.Publish(ctx, models.FileQueue, payload)
	}
	if err != nil {
		s.l.SErr("CreateEntry", "scheduling thumbnails for %s: %s", f.Id, err.Error())
		return
	}
	s.l.LogV("thumbnails scheduled for %s", f.Id)
}

// GetEntry hides other users' files behind ErrNotFound
func (s *Service) GetEntry(ctx context.Context, owner, id uuid.UUID) (*models.File, error) {
	f, err := s.db.GetUserFile(ctx, id, owner)
	if errors.Is(err, models.ErrFileNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return f, nil
}

// ListEntries returns one zero-based page of parent's children, possibly empty
func (s *Service) ListEntries(ctx context.Context, owner uuid.UUID, parent models.ParentRef, page int) ([]models.File, error) {
	if page < 0 {
		page = 0
	}
	files, err := s.db.ListDirectory(ctx, owner, parent, page*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if files == nil {
		files = []models.File{}
	}
	return files, nil
}

func (s *Service) SetVisibility(ctx context.Context, owner, id uuid.UUID, isPublic bool) (*models.File, error) {
	f, err := s.db.SetPublic(ctx, id, owner, isPublic)
	if errors.Is(err, models.ErrFileNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set visibility: %w", err)
	}
	return f, nil
}
