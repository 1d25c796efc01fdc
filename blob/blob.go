package blob

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

var ErrNotExist = errors.New("blob does not exist")

// Store is the local blob directory. Originals live at <root>/<uuid>,
// derivatives at <root>/<uuid>_<width>.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// Save writes data under a fresh random name and returns its path. The file
// is created exclusively and removed again if anything fails.
func (s *Store) Save(data []byte) (path string, err error) {
	if err = os.MkdirAll(s.root, 0755); err != nil {
		return "", err
	}
	path = filepath.Join(s.root, uuid.New().String())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
		if err != nil {
			os.Remove(path)
			path = ""
		}
	}()

	if _, err = f.Write(data); err != nil {
		return path, fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Read returns the whole content at path
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

func (s *Store) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Replace atomically swaps the content at path, readers see either the old
// or the new bytes.
func (s *Store) Replace(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DerivativePath is where the preview of the given width is stored
func DerivativePath(localPath string, width int) string {
	return fmt.Sprintf("%s_%d", localPath, width)
}
