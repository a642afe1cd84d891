package drive

import "context"

// Repository defines the contract for folder and file metadata storage.
type Repository interface {
	// Root returns the folder without a parent.
	Root(ctx context.Context) (*Folder, error)
	GetFolder(ctx context.Context, id int64) (*Folder, error)
	GetFile(ctx context.Context, id int64) (*File, error)
	// ListFolders and ListFiles return direct children only. They fail with
	// ErrNotFound when parentID does not exist.
	ListFolders(ctx context.Context, parentID int64) ([]Folder, error)
	ListFiles(ctx context.Context, parentID int64) ([]File, error)
	CreateFolder(ctx context.Context, folder *Folder) error
	CreateFile(ctx context.Context, file *File) error
	// DeleteFolder removes the folder and everything below it and returns
	// the files that were removed so their blobs can be released.
	DeleteFolder(ctx context.Context, id int64) ([]File, error)
	DeleteFile(ctx context.Context, id int64) (*File, error)
}
