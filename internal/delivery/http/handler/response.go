package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"navidrive/internal/domain/drive"
	"navidrive/internal/domain/session"
	"navidrive/internal/domain/share"
	"navidrive/internal/infrastructure/logging"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SendJSON sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// SendSuccess sends a successful JSON response
func SendSuccess(w http.ResponseWriter, message string, data any) {
	SendJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendError sends an error JSON response
func SendError(w http.ResponseWriter, message string, statusCode int) {
	SendJSON(w, statusCode, Response{
		Success: false,
		Message: message,
	})
}

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{drive.ErrNotFound, http.StatusNotFound, "Folder or file not found"},
	{drive.ErrInvalidRef, http.StatusBadRequest, "Invalid item reference"},
	{drive.ErrInvalidName, http.StatusBadRequest, "Name is required"},
	{drive.ErrInvalidCorruption, http.StatusBadRequest, "Corruption level must be 1-3 for corrupted items and 0 otherwise"},
	{drive.ErrRootDeletion, http.StatusForbidden, "Cannot delete root folder"},
	{drive.ErrIsDirectory, http.StatusBadRequest, "Cannot download a folder"},
	{drive.ErrNoContent, http.StatusNotFound, "File has no stored content"},

	{share.ErrShareNotFound, http.StatusNotFound, "Share not found"},
	{share.ErrShareInactive, http.StatusGone, "Share is no longer active"},
	{share.ErrShareExpired, http.StatusGone, "Share has expired"},
	{share.ErrMaxDownloads, http.StatusGone, "Maximum downloads reached"},
	{share.ErrPasswordRequired, http.StatusUnauthorized, "Password required"},
	{share.ErrInvalidPassword, http.StatusUnauthorized, "Invalid password"},
	{share.ErrInvalidTarget, http.StatusBadRequest, "Share target not found"},
	{share.ErrInvalidShareType, http.StatusBadRequest, "Invalid share type"},
	{share.ErrInvalidPermission, http.StatusBadRequest, "Invalid permission"},
	{share.ErrPermissionDenied, http.StatusForbidden, "This share does not allow downloads"},

	{session.ErrSessionNotFound, http.StatusUnauthorized, "Invalid or expired session"},
	{session.ErrSessionExpired, http.StatusUnauthorized, "Invalid or expired session"},
	{session.ErrSessionClosed, http.StatusGone, "Session has ended"},
	{session.ErrItemNotVisible, http.StatusNotFound, "Item is not in the current folder"},
	{session.ErrAccessDenied, http.StatusForbidden, "Cannot open file - access denied"},
	{session.ErrNotCorrupted, http.StatusBadRequest, "Item is not corrupted"},
	{session.ErrRepairLocked, http.StatusConflict, "Repair is not available yet"},
	{session.ErrInvalidKey, http.StatusBadRequest, "Key is required"},
}

// SendServiceError maps a service error to its status and message. Errors
// without a mapping are logged and reported as fallback with status 500.
func SendServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			SendError(w, m.message, m.status)
			return
		}
	}
	logging.Error(fallback, zap.Error(err))
	SendError(w, fallback, http.StatusInternalServerError)
}
