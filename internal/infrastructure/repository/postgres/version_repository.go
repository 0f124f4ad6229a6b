package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

const versionColumns = `id, document_id, version_number, storage_path, title, is_current, created_by, change_note, size, mime_type, content_hash, created_at`

type VersionRepository struct {
	db *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE document_id = $1
ORDER BY version_number DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

func (r *VersionRepository) GetVersion(ctx context.Context, versionID string) (*domain.DocumentVersion, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE id = $1
`, versionID)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrVersionNotFound, "get version", fmt.Errorf("id=%s", versionID))
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// MaxVersionNumber reports the highest version number and whether any row exists.
func (r *VersionRepository) MaxVersionNumber(ctx context.Context, documentID string) (int, bool, error) {
	var maxNumber sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
SELECT MAX(version_number) FROM document_versions WHERE document_id = $1
`, documentID).Scan(&maxNumber)
	if err != nil {
		return 0, false, fmt.Errorf("max version number: %w", err)
	}
	return int(maxNumber.Int64), maxNumber.Valid, nil
}

func (r *VersionRepository) PromoteVersion(ctx context.Context, v *domain.DocumentVersion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promote tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
UPDATE document_versions SET is_current = FALSE WHERE document_id = $1 AND is_current
`, v.DocumentID); err != nil {
		return fmt.Errorf("clear current version: %w", err)
	}
	if err := insertCurrentVersion(ctx, tx, v); err != nil {
		return err
	}
	if err := mirrorPointer(ctx, tx, v); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promote tx: %w", err)
	}
	v.IsCurrent = true
	return nil
}

func (r *VersionRepository) SwitchCurrent(ctx context.Context, documentID, versionID string) (*domain.DocumentVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin switch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
SELECT `+versionColumns+`
FROM document_versions
WHERE id = $1 AND document_id = $2
FOR UPDATE
`, versionID, documentID)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrVersionNotFound, "switch version",
				fmt.Errorf("version=%s document=%s", versionID, documentID))
		}
		return nil, fmt.Errorf("load target version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE document_versions SET is_current = FALSE WHERE document_id = $1 AND is_current
`, documentID); err != nil {
		return nil, fmt.Errorf("clear current version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE document_versions SET is_current = TRUE WHERE id = $1
`, versionID); err != nil {
		return nil, fmt.Errorf("set current version: %w", err)
	}
	if err := mirrorPointer(ctx, tx, &v); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit switch tx: %w", err)
	}
	v.IsCurrent = true
	return &v, nil
}

// DeleteVersion removes a non-current version row.
func (r *VersionRepository) DeleteVersion(ctx context.Context, versionID string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM document_versions WHERE id = $1 AND NOT is_current
`, versionID)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete version rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrVersionNotFound, "delete version",
			fmt.Errorf("id=%s missing or current", versionID))
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCurrentVersion(ctx context.Context, db execer, v *domain.DocumentVersion) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO document_versions (`+versionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, v.ID, v.DocumentID, v.VersionNumber, v.StoragePath, v.Title, true, v.CreatedBy, v.ChangeNote, v.Size,
		v.MimeType, v.ContentHash, v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrVersionConflict, "insert version",
				fmt.Errorf("document=%s version=%d: %w", v.DocumentID, v.VersionNumber, err))
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func mirrorPointer(ctx context.Context, db execer, v *domain.DocumentVersion) error {
	pointer := v.Pointer()
	result, err := db.ExecContext(ctx, `
UPDATE documents
SET storage_path = $2, title = $3, size = $4,
	mime_type = COALESCE(NULLIF($5, ''), mime_type),
	content_hash = COALESCE(NULLIF($6, ''), content_hash),
	updated_at = $7
WHERE id = $1
`, v.DocumentID, pointer.StoragePath, pointer.Title, pointer.Size, pointer.MimeType, pointer.ContentHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mirror version onto document: %w", err)
	}
	return requireAffected(result, "mirror version onto document", v.DocumentID)
}

func scanVersion(row rowScanner) (domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	err := row.Scan(
		&v.ID, &v.DocumentID, &v.VersionNumber, &v.StoragePath, &v.Title, &v.IsCurrent,
		&v.CreatedBy, &v.ChangeNote, &v.Size, &v.MimeType, &v.ContentHash, &v.CreatedAt,
	)
	return v, err
}
