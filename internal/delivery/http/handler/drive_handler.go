package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	driveService "navidrive/internal/application/drive"
	domain "navidrive/internal/domain/drive"
	"navidrive/internal/infrastructure/logging"
)

type DriveHandler struct {
	service     driveService.Service
	maxFileSize int64
}

func NewDriveHandler(service driveService.Service, maxFileSize int64) *DriveHandler {
	return &DriveHandler{
		service:     service,
		maxFileSize: maxFileSize,
	}
}

// Init handles POST /api/init
func (h *DriveHandler) Init(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.service.Seed(r.Context())
	if err != nil {
		SendServiceError(w, err, "Failed to initialize database")
		return
	}
	if res.Skipped {
		SendSuccess(w, "Database already initialized", res)
		return
	}
	SendSuccess(w, "Database initialized", res)
}

// FolderContents handles GET /api/folder-contents?parent={id}
func (h *DriveHandler) FolderContents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parentID, ok := h.parentParam(w, r)
	if !ok {
		return
	}

	contents, err := h.service.Contents(r.Context(), parentID)
	if err != nil {
		SendServiceError(w, err, "Failed to load folder contents")
		return
	}
	SendSuccess(w, "", contents)
}

// Folders handles GET and POST /api/folders
func (h *DriveHandler) Folders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		parentID, ok := h.parentParam(w, r)
		if !ok {
			return
		}
		folders, err := h.service.ListFolders(r.Context(), parentID)
		if err != nil {
			SendServiceError(w, err, "Failed to list folders")
			return
		}
		SendSuccess(w, "", folders)
	case http.MethodPost:
		var req domain.CreateFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			SendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		folder, err := h.service.CreateFolder(r.Context(), req)
		if err != nil {
			SendServiceError(w, err, "Failed to create folder")
			return
		}
		SendSuccess(w, "Folder created successfully", folder)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// FolderByID handles DELETE /api/folders/{id}
func (h *DriveHandler) FolderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, rest, err := pathID(r.URL.Path, "/api/folders/")
	if err != nil || rest != "" {
		SendError(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteFolder(r.Context(), id); err != nil {
		SendServiceError(w, err, "Failed to delete folder")
		return
	}
	SendSuccess(w, "Folder deleted successfully", nil)
}

// Files handles GET and POST /api/files
func (h *DriveHandler) Files(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		parentID, ok := h.parentParam(w, r)
		if !ok {
			return
		}
		files, err := h.service.ListFiles(r.Context(), parentID)
		if err != nil {
			SendServiceError(w, err, "Failed to list files")
			return
		}
		SendSuccess(w, "", files)
	case http.MethodPost:
		var req domain.CreateFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			SendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		file, err := h.service.CreateFile(r.Context(), req)
		if err != nil {
			SendServiceError(w, err, "Failed to create file")
			return
		}
		SendSuccess(w, "File created successfully", file)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// FileByID handles DELETE /api/files/{id} and GET /api/files/{id}/download
func (h *DriveHandler) FileByID(w http.ResponseWriter, r *http.Request) {
	id, rest, err := pathID(r.URL.Path, "/api/files/")
	if err != nil {
		SendError(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodDelete:
		if err := h.service.DeleteFile(r.Context(), id); err != nil {
			SendServiceError(w, err, "Failed to delete file")
			return
		}
		SendSuccess(w, "File deleted successfully", nil)
	case rest == "download" && r.Method == http.MethodGet:
		h.download(w, r, id)
	case rest == "" || rest == "download":
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		SendError(w, "Not found", http.StatusNotFound)
	}
}

func (h *DriveHandler) download(w http.ResponseWriter, r *http.Request, id int64) {
	file, body, err := h.service.Download(r.Context(), id)
	if err != nil {
		SendServiceError(w, err, "Failed to access file")
		return
	}
	defer body.Close()

	// Check if this is a preview request (inline display)
	isPreview := r.URL.Query().Get("preview") == "true"
	ServeContent(w, file.Name, body, isPreview)
}

// ServeContent streams body with a content type and disposition derived
// from name.
func ServeContent(w http.ResponseWriter, name string, body io.Reader, inline bool) {
	w.Header().Set("Content-Type", domain.ContentType(name))
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	if _, err := io.Copy(w, body); err != nil {
		logging.Warn("failed to stream file", zap.String("name", name), zap.Error(err))
	}
}

// Upload handles POST /api/upload
func (h *DriveHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		SendError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	parentID, err := strconv.ParseInt(r.FormValue("parentId"), 10, 64)
	if err != nil {
		SendError(w, "parentId is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		SendError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		SendError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	res, err := h.service.Upload(r.Context(), parentID, header.Filename, file, header.Size)
	if err != nil {
		SendServiceError(w, err, "Failed to upload file")
		return
	}

	message := "File uploaded successfully"
	if res.Warning != "" {
		message = res.Warning
	}
	SendSuccess(w, message, res)
}

// ServeUpload handles GET /uploads/{key}
func (h *DriveHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, driveService.UploadURLPrefix)
	body, size, err := h.service.OpenBlob(r.Context(), key)
	if err != nil {
		SendServiceError(w, err, "Failed to access file")
		return
	}
	defer body.Close()

	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	ServeContent(w, key, body, true)
}

// parentParam reads ?parent=, defaulting to the root folder.
func (h *DriveHandler) parentParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("parent")
	if raw == "" {
		root, err := h.service.Root(r.Context())
		if err != nil {
			SendServiceError(w, err, "Failed to load root folder")
			return 0, false
		}
		return root.ID, true
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		SendError(w, "Invalid parent ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pathID splits "/prefix/{id}/rest" into id and rest.
func pathID(path, prefix string) (int64, string, error) {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	idPart, rest, _ := strings.Cut(trimmed, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, rest, nil
}
