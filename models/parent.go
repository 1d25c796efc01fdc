package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// RootSentinel is how the root parent travels over the wire
const RootSentinel = "0"

// ParentRef is either the root of a user's hierarchy or a folder id.
// The zero value is the root.
type ParentRef struct {
	folder uuid.UUID
}

func Root() ParentRef {
	return ParentRef{}
}

func InFolder(id uuid.UUID) ParentRef {
	return ParentRef{folder: id}
}

func (p ParentRef) IsRoot() bool {
	return p.folder == uuid.Nil
}

// Folder returns the folder id and false for the root
func (p ParentRef) Folder() (uuid.UUID, bool) {
	return p.folder, !p.IsRoot()
}

func (p ParentRef) String() string {
	if p.IsRoot() {
		return RootSentinel
	}
	return p.folder.String()
}

// ParseParent accepts "", "0" or a folder UUID
func ParseParent(s string) (ParentRef, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == RootSentinel {
		return Root(), nil
	}
	id, err := uuid.Parse(s)
	// the nil id is no folder, the root has a single spelling
	if err != nil || id == uuid.Nil {
		return Root(), Invalid("Parent not found")
	}
	return InFolder(id), nil
}

// MarshalJSON writes the root as the number 0 and folders as id strings
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte(RootSentinel), nil
	}
	return json.Marshal(p.folder.String())
}

func (p *ParentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(RootSentinel)) {
		*p = Root()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return Invalid("Parent not found")
	}
	ref, err := ParseParent(s)
	if err != nil {
		return err
	}
	*p = ref
	return nil
}
