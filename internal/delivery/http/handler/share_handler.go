package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	shareService "navidrive/internal/application/share"
	"navidrive/internal/domain/drive"
	domain "navidrive/internal/domain/share"
)

type ShareHandler struct {
	service shareService.Service
	baseURL string
}

func NewShareHandler(service shareService.Service, baseURL string) *ShareHandler {
	return &ShareHandler{
		service: service,
		baseURL: baseURL,
	}
}

// CreateShare handles POST /api/shares
func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	share, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrPasswordRequired) {
			SendError(w, "Password is required for password-protected shares", http.StatusBadRequest)
			return
		}
		SendServiceError(w, err, "Failed to create share")
		return
	}

	SendSuccess(w, "Share created successfully", share.ToResponse(h.baseURL))
}

// ListShares handles GET /api/shares
func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shares, err := h.service.List(r.Context())
	if err != nil {
		SendServiceError(w, err, "Failed to retrieve shares")
		return
	}

	// Convert to responses
	responses := make([]domain.ShareResponse, len(shares))
	for i, share := range shares {
		responses[i] = share.ToResponse(h.baseURL)
	}

	SendSuccess(w, "", responses)
}

// GetShare handles GET /api/shares/{id}
func (h *ShareHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	shareID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/shares/"), "/")
	if shareID == "" {
		SendError(w, "Share ID is required", http.StatusBadRequest)
		return
	}

	share, err := h.service.Get(r.Context(), shareID)
	if err != nil {
		SendServiceError(w, err, "Failed to retrieve share")
		return
	}
	SendSuccess(w, "", share.ToResponse(h.baseURL))
}

// DeleteShare handles DELETE /api/shares/{id}
func (h *ShareHandler) DeleteShare(w http.ResponseWriter, r *http.Request) {
	shareID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/shares/"), "/")
	if shareID == "" {
		SendError(w, "Share ID is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), shareID); err != nil {
		SendServiceError(w, err, "Failed to delete share")
		return
	}

	SendSuccess(w, "Share deleted successfully", nil)
}

// AccessShare handles GET and POST /api/s/{token}. Password shares answer a
// GET with requiresPassword and expect the password in a POST body.
func (h *ShareHandler) AccessShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract token from path: /api/s/{token}
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/s/"), "/")
	if token == "" {
		SendError(w, "Share token is required", http.StatusBadRequest)
		return
	}

	share, err := h.service.Lookup(r.Context(), token)
	if err != nil {
		SendServiceError(w, err, "Failed to retrieve share")
		return
	}

	var password string
	if share.ShareType == domain.ShareTypePassword {
		if r.Method == http.MethodGet {
			SendJSON(w, http.StatusOK, Response{
				Success: true,
				Message: "Password required",
				Data: map[string]any{
					"requiresPassword": true,
					"target":           share.Target,
				},
			})
			return
		}

		var req domain.AccessShareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			SendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		password = req.Password
	}

	access, err := h.service.Access(r.Context(), token, password)
	if err != nil {
		SendServiceError(w, err, "Failed to access share")
		return
	}

	// Files shared with download permission are served directly
	if access.File != nil && share.Permission == domain.PermissionDownload {
		file, body, err := h.service.Download(r.Context(), access)
		switch {
		case err == nil:
			defer body.Close()
			ServeContent(w, file.Name, body, r.URL.Query().Get("preview") == "true")
			return
		case !errors.Is(err, drive.ErrNoContent):
			SendServiceError(w, err, "Failed to download shared file")
			return
		}
	}

	SendSuccess(w, "", map[string]any{
		"permission": share.Permission,
		"folder":     access.Folder,
		"contents":   access.Contents,
		"file":       access.File,
	})
}

// HandleShares routes /api/shares based on method
func (h *ShareHandler) HandleShares(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListShares(w, r)
	case http.MethodPost:
		h.CreateShare(w, r)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleShareByID routes /api/shares/{id} based on method
func (h *ShareHandler) HandleShareByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetShare(w, r)
	case http.MethodDelete:
		h.DeleteShare(w, r)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
