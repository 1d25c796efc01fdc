package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FileType string

const (
	TypeFolder FileType = "folder"
	TypeFile   FileType = "file"
	TypeImage  FileType = "image"
)

// Valid reports whether t is one of folder, file or image
func (t FileType) Valid() bool {
	switch t {
	case TypeFolder, TypeFile, TypeImage:
		return true
	}
	return false
}

type User struct {
	Id           uuid.UUID
	Email        string
	PasswordHash string
}

// File is a folder, file or image entry of a user's hierarchy.
// LocalPath is empty for folders and is never sent to clients.
type File struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Name      string
	Type      FileType
	ParentId  ParentRef
	IsPublic  bool
	LocalPath string
}

// Database is the metadata store. Every method is a single-document
// operation; callers rely on the store's own atomicity for them.
type Database interface {
	Close() error
	Ping(ctx context.Context) error

	NewUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CountUsers(ctx context.Context) (int64, error)

	NewFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)
	// GetUserFile returns ErrFileNotFound when the file exists but belongs to someone else
	GetUserFile(ctx context.Context, id, userId uuid.UUID) (*File, error)
	// ListDirectory returns the children of parent owned by userId in insertion order
	ListDirectory(ctx context.Context, userId uuid.UUID, parent ParentRef, offset, limit int) ([]File, error)
	SetPublic(ctx context.Context, id, userId uuid.UUID, isPublic bool) (*File, error)
	CountFiles(ctx context.Context) (int64, error)
}

// Cache is the ephemeral key/value store holding sessions.
// Get must not extend the key's expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del reports whether a live key was removed
	Del(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher hands a job payload to a named queue
type Publisher interface {
	Publish(ctx context.Context, queue string, payload []byte) error
}
