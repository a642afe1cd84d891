package session

import (
	"time"

	"navidrive/internal/domain/narrative"
)

// Snapshot is the persisted part of a drive session: the narrative
// progression plus where the session was browsing. Timers, the active
// corruption map and the key windows are transient and never stored.
type Snapshot struct {
	ID            string          `json:"id"`
	Token         string          `json:"-"`
	State         narrative.State `json:"state"`
	NaviMode      bool            `json:"naviMode"`
	CurrentFolder int64           `json:"currentFolder"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// IsExpired returns true if the session can no longer be resumed at now.
func (s *Snapshot) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StartResponse is returned when a session is created.
type StartResponse struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// NavigateRequest moves the session to a folder.
type NavigateRequest struct {
	FolderID int64 `json:"folderId"`
}

// ItemRequest targets one visible item (open, repair, select).
type ItemRequest struct {
	Ref string `json:"ref"`
}

// KeyRequest feeds one key code into the session's sequence detectors.
type KeyRequest struct {
	Key string `json:"key"`
}
