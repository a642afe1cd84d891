package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"navidrive/internal/domain/drive"
	"navidrive/internal/infrastructure/database"
)

const (
	folderColumns = `id, name, parent_id, corrupted, corruption_level, reveal_level, modified`
	fileColumns   = `id, name, size, url, storage_key, parent_id, corrupted, corruption_level, reveal_level, file_type, modified`
)

type driveRepository struct {
	db *database.DB
}

// NewDriveRepository creates a folder/file metadata repository
func NewDriveRepository(db *database.DB) drive.Repository {
	return &driveRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(row scanner) (*drive.Folder, error) {
	f := &drive.Folder{}
	var parent sql.NullInt64
	if err := row.Scan(&f.ID, &f.Name, &parent, &f.Corrupted, &f.CorruptionLevel, &f.RevealLevel, &f.Modified); err != nil {
		return nil, err
	}
	if parent.Valid {
		f.ParentID = &parent.Int64
	}
	return f, nil
}

func scanFile(row scanner) (*drive.File, error) {
	f := &drive.File{}
	if err := row.Scan(&f.ID, &f.Name, &f.Size, &f.URL, &f.StorageKey, &f.ParentID, &f.Corrupted, &f.CorruptionLevel, &f.RevealLevel, &f.FileType, &f.Modified); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *driveRepository) Root(ctx context.Context) (*drive.Folder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE parent_id IS NULL ORDER BY id LIMIT 1`)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, drive.ErrNotFound
	}
	return f, err
}

func (r *driveRepository) GetFolder(ctx context.Context, id int64) (*drive.Folder, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+folderColumns+` FROM folders WHERE id = ?`), id)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, drive.ErrNotFound
	}
	return f, err
}

func (r *driveRepository) GetFile(ctx context.Context, id int64) (*drive.File, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+fileColumns+` FROM files WHERE id = ?`), id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, drive.ErrNotFound
	}
	return f, err
}

func (r *driveRepository) folderExists(ctx context.Context, id int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM folders WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return drive.ErrNotFound
	}
	return err
}

func (r *driveRepository) ListFolders(ctx context.Context, parentID int64) ([]drive.Folder, error) {
	if err := r.folderExists(ctx, parentID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind(`SELECT `+folderColumns+` FROM folders WHERE parent_id = ? ORDER BY name`), parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := make([]drive.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *driveRepository) ListFiles(ctx context.Context, parentID int64) ([]drive.File, error) {
	if err := r.folderExists(ctx, parentID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind(`SELECT `+fileColumns+` FROM files WHERE parent_id = ? ORDER BY name`), parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]drive.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (r *driveRepository) CreateFolder(ctx context.Context, f *drive.Folder) error {
	if f.ParentID != nil {
		if err := r.folderExists(ctx, *f.ParentID); err != nil {
			return err
		}
	}
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO folders (name, parent_id, corrupted, corruption_level, reveal_level, modified)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		f.Name, f.ParentID, f.Corrupted, f.CorruptionLevel, f.RevealLevel, f.Modified,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (r *driveRepository) CreateFile(ctx context.Context, f *drive.File) error {
	if err := r.folderExists(ctx, f.ParentID); err != nil {
		return err
	}
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO files (name, size, url, storage_key, parent_id, corrupted, corruption_level, reveal_level, file_type, modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		f.Name, f.Size, f.URL, f.StorageKey, f.ParentID, f.Corrupted, f.CorruptionLevel, f.RevealLevel, f.FileType, f.Modified,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// DeleteFolder walks the subtree with a recursive CTE and removes it in one
// transaction, files first.
func (r *driveRepository) DeleteFolder(ctx context.Context, id int64) ([]drive.File, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, r.db.Rebind(
		`WITH RECURSIVE tree(id) AS (
			SELECT id FROM folders WHERE id = ?
			UNION ALL
			SELECT f.id FROM folders f JOIN tree t ON f.parent_id = t.id
		)
		SELECT id FROM tree`), id)
	if err != nil {
		return nil, err
	}
	var ids []any
	for rows.Next() {
		var fid int64
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, fid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, drive.ErrNotFound
	}

	in := database.Placeholders(len(ids))
	fileRows, err := tx.QueryContext(ctx,
		r.db.Rebind(`SELECT `+fileColumns+` FROM files WHERE parent_id IN (`+in+`)`), ids...)
	if err != nil {
		return nil, err
	}
	removed := make([]drive.File, 0)
	for fileRows.Next() {
		f, err := scanFile(fileRows)
		if err != nil {
			fileRows.Close()
			return nil, err
		}
		removed = append(removed, *f)
	}
	fileRows.Close()
	if err := fileRows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM files WHERE parent_id IN (`+in+`)`), ids...); err != nil {
		return nil, err
	}
	// Children before parents so the foreign key never dangles.
	for i := len(ids) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM folders WHERE id = ?`), ids[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *driveRepository) DeleteFile(ctx context.Context, id int64) (*drive.File, error) {
	f, err := r.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM files WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, drive.ErrNotFound
	}
	return f, nil
}
