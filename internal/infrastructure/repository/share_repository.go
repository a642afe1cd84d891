package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"navidrive/internal/domain/drive"
	"navidrive/internal/domain/share"
	"navidrive/internal/infrastructure/database"
)

const shareColumns = `id, token, target_kind, target_id, share_type, password, permission, expires_at, max_downloads, downloads, is_active, created_at`

type shareRepository struct {
	db *database.DB
}

// NewShareRepository creates a new share repository
func NewShareRepository(db *database.DB) share.Repository {
	return &shareRepository{db: db}
}

func scanShare(row scanner) (*share.Share, error) {
	s := &share.Share{}
	var kind string
	var expiresAt sql.NullTime
	var maxDownloads sql.NullInt64

	err := row.Scan(&s.ID, &s.Token, &kind, &s.Target.ID, &s.ShareType, &s.Password, &s.Permission,
		&expiresAt, &maxDownloads, &s.Downloads, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.Target.Kind = drive.ItemKind(kind)
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.Time
	}
	if maxDownloads.Valid {
		md := int(maxDownloads.Int64)
		s.MaxDownloads = &md
	}
	return s, nil
}

func (r *shareRepository) Create(ctx context.Context, s *share.Share) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO shares (`+shareColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.Token, string(s.Target.Kind), s.Target.ID, s.ShareType, s.Password, s.Permission,
		s.ExpiresAt, s.MaxDownloads, s.Downloads, s.IsActive, s.CreatedAt,
	)
	return err
}

func (r *shareRepository) getOne(ctx context.Context, where string, arg any) (*share.Share, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+shareColumns+` FROM shares WHERE `+where+` = ?`), arg)
	s, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, share.ErrShareNotFound
	}
	return s, err
}

func (r *shareRepository) GetByID(ctx context.Context, id string) (*share.Share, error) {
	return r.getOne(ctx, "id", id)
}

func (r *shareRepository) GetByToken(ctx context.Context, token string) (*share.Share, error) {
	return r.getOne(ctx, "token", token)
}

func (r *shareRepository) list(ctx context.Context, query string, args ...any) ([]share.Share, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := make([]share.Share, 0)
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *s)
	}
	return shares, rows.Err()
}

func (r *shareRepository) List(ctx context.Context) ([]share.Share, error) {
	return r.list(ctx, `SELECT `+shareColumns+` FROM shares ORDER BY created_at DESC`)
}

func (r *shareRepository) GetByTarget(ctx context.Context, target drive.Ref) ([]share.Share, error) {
	return r.list(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE target_kind = ? AND target_id = ? ORDER BY created_at DESC`,
		string(target.Kind), target.ID)
}

func (r *shareRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM shares WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return share.ErrShareNotFound
	}
	return nil
}

func (r *shareRepository) DeleteByTarget(ctx context.Context, target drive.Ref) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM shares WHERE target_kind = ? AND target_id = ?`),
		string(target.Kind), target.ID)
	return err
}

func (r *shareRepository) IncrementDownloads(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE shares SET downloads = downloads + 1 WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return share.ErrShareNotFound
	}
	return nil
}
