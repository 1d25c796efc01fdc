// Package memory keeps users and files in process memory. It backs the
// `memory` driver and the tests of every service.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/models"
)

type Database struct {
	mu    sync.RWMutex
	users []models.User
	files []models.File // insertion order
}

func New() *Database {
	return &Database{}
}

func (db *Database) Close() error                   { return nil }
func (db *Database) Ping(ctx context.Context) error { return nil }

func (db *Database) NewUser(ctx context.Context, u *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Email == u.Email || existing.Id == u.Id {
			return models.ErrUserExists
		}
	}
	db.users = append(db.users, *u)
	return nil
}

func (db *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if u.Id == id {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (db *Database) CountUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return int64(len(db.users)), nil
}

func (db *Database) NewFile(ctx context.Context, f *models.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.files = append(db.files, *f)
	return nil
}

func (db *Database) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if i := db.index(id); i >= 0 {
		f := db.files[i]
		return &f, nil
	}
	return nil, models.ErrFileNotFound
}

func (db *Database) GetUserFile(ctx context.Context, id, userId uuid.UUID) (*models.File, error) {
	f, err := db.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.UserId != userId {
		return nil, models.ErrFileNotFound
	}
	return f, nil
}

func (db *Database) ListDirectory(ctx context.Context, userId uuid.UUID, parent models.ParentRef, offset, limit int) ([]models.File, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	files := []models.File{}
	skipped := 0
	for _, f := range db.files {
		if f.UserId != userId || f.ParentId != parent {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(files) == limit {
			break
		}
		files = append(files, f)
	}
	return files, nil
}

func (db *Database) SetPublic(ctx context.Context, id, userId uuid.UUID, isPublic bool) (*models.File, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.index(id)
	if i < 0 || db.files[i].UserId != userId {
		return nil, models.ErrFileNotFound
	}
	db.files[i].IsPublic = isPublic
	f := db.files[i]
	return &f, nil
}

func (db *Database) CountFiles(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return int64(len(db.files)), nil
}

func (db *Database) index(id uuid.UUID) int {
	for i, f := range db.files {
		if f.Id == id {
			return i
		}
	}
	return -1
}
