package drive

import "errors"

var (
	ErrNotFound          = errors.New("folder or file not found")
	ErrInvalidRef        = errors.New("invalid item reference")
	ErrInvalidName       = errors.New("name is required")
	ErrInvalidCorruption = errors.New("corruption level must be 1-3 when corrupted and 0 otherwise")
	ErrRootDeletion      = errors.New("cannot delete root folder")
	ErrIsDirectory       = errors.New("cannot download a folder")
	ErrNoContent         = errors.New("file has no stored content")
	ErrCycle             = errors.New("folder hierarchy contains a cycle")
	ErrUploadFailed      = errors.New("failed to upload file")
	ErrDeleteFailed      = errors.New("failed to delete")
)
