package share

import (
	"time"

	"navidrive/internal/domain/drive"
)

// ShareType represents the type of share
type ShareType string

const (
	ShareTypePublic   ShareType = "public"   // Anyone with link
	ShareTypePassword ShareType = "password" // Requires password
)

// Permission represents what the share allows
type Permission string

const (
	PermissionView     Permission = "view"
	PermissionDownload Permission = "download"
)

// Share is a link to a drive folder or file.
type Share struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	Target       drive.Ref  `json:"target"`
	ShareType    ShareType  `json:"shareType"`
	Password     string     `json:"-"` // bcrypt hash
	Permission   Permission `json:"permission"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int       `json:"maxDownloads,omitempty"`
	Downloads    int        `json:"downloads"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsActive     bool       `json:"isActive"`
}

// ShareResponse is the safe share representation for API responses
type ShareResponse struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	Target       drive.Ref  `json:"target"`
	ShareType    ShareType  `json:"shareType"`
	Permission   Permission `json:"permission"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int       `json:"maxDownloads,omitempty"`
	Downloads    int        `json:"downloads"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsActive     bool       `json:"isActive"`
	URL          string     `json:"url"`
}

// CreateShareRequest represents a request to create a share
type CreateShareRequest struct {
	Target       drive.Ref  `json:"target"`
	ShareType    ShareType  `json:"shareType"`
	Password     string     `json:"password,omitempty"`
	Permission   Permission `json:"permission"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int       `json:"maxDownloads,omitempty"`
}

// AccessShareRequest represents a request to access a password-protected share
type AccessShareRequest struct {
	Password string `json:"password"`
}

// Access is what a valid share resolves to. Exactly one of Folder and File is set.
type Access struct {
	Share    *Share          `json:"-"`
	Folder   *drive.Folder   `json:"folder,omitempty"`
	Contents *drive.Contents `json:"contents,omitempty"`
	File     *drive.File     `json:"file,omitempty"`
}

// ToResponse converts a Share to ShareResponse
func (s *Share) ToResponse(baseURL string) ShareResponse {
	return ShareResponse{
		ID:           s.ID,
		Token:        s.Token,
		Target:       s.Target,
		ShareType:    s.ShareType,
		Permission:   s.Permission,
		ExpiresAt:    s.ExpiresAt,
		MaxDownloads: s.MaxDownloads,
		Downloads:    s.Downloads,
		CreatedAt:    s.CreatedAt,
		IsActive:     s.IsActive,
		URL:          baseURL + "/api/s/" + s.Token,
	}
}

// IsExpired returns true if the share has expired at now.
func (s *Share) IsExpired(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// HasReachedMaxDownloads returns true if max downloads reached
func (s *Share) HasReachedMaxDownloads() bool {
	if s.MaxDownloads == nil {
		return false
	}
	return s.Downloads >= *s.MaxDownloads
}

// Check returns the reason a share can no longer be used, or nil.
func (s *Share) Check(now time.Time) error {
	switch {
	case !s.IsActive:
		return ErrShareInactive
	case s.IsExpired(now):
		return ErrShareExpired
	case s.HasReachedMaxDownloads():
		return ErrMaxDownloads
	}
	return nil
}
