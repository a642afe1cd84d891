package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"navidrive/internal/domain/narrative"
	"navidrive/internal/domain/session"
	"navidrive/internal/infrastructure/database"
)

const sessionColumns = `id, token, level, corrupted_clicks, repair_attempts, secret_code, navi_mode, current_folder, created_at, updated_at, expires_at`

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) session.Repository {
	return &sessionRepository{db: db}
}

// The secret is stored space separated; key codes never contain spaces.
func encodeSecret(code []string) string {
	return strings.Join(code, " ")
}

func decodeSecret(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func (r *sessionRepository) Create(ctx context.Context, s *session.Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.Token, int(s.State.Level), s.State.CorruptedClicks, s.State.RepairAttempts,
		encodeSecret(s.State.SecretCode), s.NaviMode, s.CurrentFolder, s.CreatedAt, s.UpdatedAt, s.ExpiresAt,
	)
	return err
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*session.Snapshot, error) {
	s := &session.Snapshot{}
	var level int
	var secret string

	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE token = ?`), token).Scan(
		&s.ID, &s.Token, &level, &s.State.CorruptedClicks, &s.State.RepairAttempts, &secret,
		&s.NaviMode, &s.CurrentFolder, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	s.State.Level = narrative.Level(level)
	s.State.SecretCode = decodeSecret(secret)
	return s, nil
}

func (r *sessionRepository) Update(ctx context.Context, s *session.Snapshot) error {
	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE sessions SET level = ?, corrupted_clicks = ?, repair_attempts = ?, secret_code = ?,
		 navi_mode = ?, current_folder = ?, updated_at = ?
		 WHERE token = ?`),
		int(s.State.Level), s.State.CorruptedClicks, s.State.RepairAttempts, encodeSecret(s.State.SecretCode),
		s.NaviMode, s.CurrentFolder, s.UpdatedAt, s.Token,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE token = ?`), token)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE expires_at < ?`), now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
