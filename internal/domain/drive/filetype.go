package drive

import (
	"path/filepath"
	"strings"
)

// File type categories used for icon selection.
const (
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeArchive  = "archive"
	FileTypeCode     = "code"
	FileTypeDocument = "document"
)

var extensionsByType = map[string][]string{
	FileTypeImage:   {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp"},
	FileTypeVideo:   {".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"},
	FileTypeAudio:   {".mp3", ".wav", ".flac", ".aac", ".m4a", ".ogg"},
	FileTypeArchive: {".zip", ".rar", ".7z", ".tar", ".gz"},
	FileTypeCode:    {".exe", ".dll", ".c", ".go", ".js", ".ts", ".py", ".glsl"},
}

var fileTypesByExt = func() map[string]string {
	m := make(map[string]string)
	for t, exts := range extensionsByType {
		for _, ext := range exts {
			m[ext] = t
		}
	}
	return m
}()

// DetectFileType maps a file name to its icon category.
func DetectFileType(name string) string {
	if t, ok := fileTypesByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return FileTypeDocument
}

// ContentType returns the MIME type based on file extension
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", ".dat":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
