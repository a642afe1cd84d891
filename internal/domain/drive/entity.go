package drive

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemKind distinguishes folders from files. Folder and file ids live in
// separate tables, so an id is only unique together with its kind.
type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindFile   ItemKind = "file"
)

// MaxCorruptionLevel is the highest corruption level an item can carry.
const MaxCorruptionLevel = 3

// Ref identifies an item across both collections.
type Ref struct {
	Kind ItemKind
	ID   int64
}

// FolderRef returns the Ref of a folder id.
func FolderRef(id int64) Ref { return Ref{Kind: KindFolder, ID: id} }

// FileRef returns the Ref of a file id.
func FileRef(id int64) Ref { return Ref{Kind: KindFile, ID: id} }

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// MarshalText encodes the ref as "kind:id".
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a "kind:id" ref.
func (r *Ref) UnmarshalText(text []byte) error {
	parsed, err := ParseRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRef parses the "kind:id" form produced by Ref.String.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, ErrInvalidRef
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Ref{}, ErrInvalidRef
	}
	switch ItemKind(kind) {
	case KindFolder, KindFile:
		return Ref{Kind: ItemKind(kind), ID: n}, nil
	default:
		return Ref{}, ErrInvalidRef
	}
}

// Folder is a node of the drive tree. ParentID is nil for the root.
type Folder struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ParentID        *int64 `json:"parent"`
	Corrupted       bool   `json:"corrupted"`
	CorruptionLevel int    `json:"corruptionLevel"`
	RevealLevel     int    `json:"revealLevel"`
	Modified        string `json:"modified"`
}

// IsRoot returns true if the folder has no parent.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// Item returns the folder as a list item.
func (f Folder) Item() Item {
	return Item{
		Kind:            KindFolder,
		ID:              f.ID,
		Name:            f.Name,
		ParentID:        f.ParentID,
		Modified:        f.Modified,
		Corrupted:       f.Corrupted,
		CorruptionLevel: f.CorruptionLevel,
		RevealLevel:     f.RevealLevel,
	}
}

// File is a leaf of the drive tree. Files always have a parent folder.
type File struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Size            int64  `json:"size"`
	URL             string `json:"url"`
	ParentID        int64  `json:"parent"`
	Corrupted       bool   `json:"corrupted"`
	CorruptionLevel int    `json:"corruptionLevel"`
	RevealLevel     int    `json:"revealLevel"`
	FileType        string `json:"fileType"`
	Modified        string `json:"modified"`
	// StorageKey names the blob backing an uploaded file. Seeded files have none.
	StorageKey string `json:"-"`
}

// Item returns the file as a list item.
func (f File) Item() Item {
	parent := f.ParentID
	return Item{
		Kind:            KindFile,
		ID:              f.ID,
		Name:            f.Name,
		ParentID:        &parent,
		Modified:        f.Modified,
		Corrupted:       f.Corrupted,
		CorruptionLevel: f.CorruptionLevel,
		RevealLevel:     f.RevealLevel,
		Size:            f.Size,
		URL:             f.URL,
		FileType:        f.FileType,
	}
}

// Item is the union view of a folder or a file used by listings and renderers.
// Size, URL and FileType are only set for files.
type Item struct {
	Kind            ItemKind `json:"kind"`
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	ParentID        *int64   `json:"parent"`
	Modified        string   `json:"modified"`
	Corrupted       bool     `json:"corrupted"`
	CorruptionLevel int      `json:"corruptionLevel"`
	RevealLevel     int      `json:"revealLevel"`
	Size            int64    `json:"size,omitempty"`
	URL             string   `json:"url,omitempty"`
	FileType        string   `json:"fileType,omitempty"`
}

// Ref returns the item's cross-collection key.
func (i Item) Ref() Ref {
	return Ref{Kind: i.Kind, ID: i.ID}
}

// IsFolder reports whether the item is a folder.
func (i Item) IsFolder() bool {
	return i.Kind == KindFolder
}

// Contents is the direct children of one folder, folders before files.
type Contents struct {
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

// Items flattens the contents into a single ordered sequence.
func (c Contents) Items() []Item {
	items := make([]Item, 0, len(c.Folders)+len(c.Files))
	for _, f := range c.Folders {
		items = append(items, f.Item())
	}
	for _, f := range c.Files {
		items = append(items, f.Item())
	}
	return items
}

// Visible returns the contents an observer at the given narrative level may see.
func (c Contents) Visible(level int) Contents {
	out := Contents{
		Folders: make([]Folder, 0, len(c.Folders)),
		Files:   make([]File, 0, len(c.Files)),
	}
	for _, f := range c.Folders {
		if f.RevealLevel <= level {
			out.Folders = append(out.Folders, f)
		}
	}
	for _, f := range c.Files {
		if f.RevealLevel <= level {
			out.Files = append(out.Files, f)
		}
	}
	return out
}

// ValidateCorruption enforces that level is 0 iff the item is not corrupted.
func ValidateCorruption(corrupted bool, level int) error {
	if corrupted {
		if level < 1 || level > MaxCorruptionLevel {
			return ErrInvalidCorruption
		}
		return nil
	}
	if level != 0 {
		return ErrInvalidCorruption
	}
	return nil
}

// ModifiedFormat is the display format of the modified column.
const ModifiedFormat = "2006.01.02"

// CreateFolderRequest represents a request to create a folder
type CreateFolderRequest struct {
	Name   string `json:"name"`
	Parent int64  `json:"parent"`
}

// CreateFileRequest represents a request to register file metadata
type CreateFileRequest struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	Size            int64  `json:"size"`
	Parent          int64  `json:"parent"`
	Corrupted       bool   `json:"corrupted"`
	CorruptionLevel int    `json:"corruptionLevel"`
	RevealLevel     int    `json:"revealLevel,omitempty"`
}

// UploadResult describes a stored upload.
type UploadResult struct {
	File    File   `json:"file"`
	Mode    string `json:"mode"`
	Warning string `json:"warning,omitempty"`
}

const (
	UploadModeDatabase = "database"
	UploadModeFallback = "fallback"
)
