package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionClosed   = errors.New("session is closed")
	ErrItemNotVisible  = errors.New("item is not in the current view")
	ErrNotCorrupted    = errors.New("item is not corrupted")
	ErrRepairLocked    = errors.New("repair is not available at this level")
	ErrAccessDenied    = errors.New("access denied: file corrupted")
	ErrInvalidKey      = errors.New("invalid key")
)
