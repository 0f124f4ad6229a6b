package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

const documentColumns = `id, title, owner_id, storage_path, mime_type, size, content_hash, parent_folder_id, status, metadata, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	metadata, err := marshalJSONB(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.Title, doc.OwnerID, doc.StoragePath, doc.MimeType, doc.Size, doc.ContentHash,
		nullableString(doc.ParentFolderID), string(doc.Status), metadata, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateState(ctx context.Context, id string, status domain.DocumentStatus, patch map[string]any) error {
	metadata, err := marshalJSONB(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = COALESCE(NULLIF($2, ''), status), metadata = metadata || $3::jsonb, updated_at = $4
WHERE id = $1
`, id, string(status), metadata, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	return requireAffected(result, "update document state", id)
}

func (r *DocumentRepository) UpdateStoragePath(ctx context.Context, id, storagePath string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET storage_path = $2, updated_at = $3
WHERE id = $1
`, id, storagePath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update storage path: %w", err)
	}
	return requireAffected(result, "update storage path", id)
}

func (r *DocumentRepository) SetParentFolder(ctx context.Context, id, folderID string, patch map[string]any) error {
	metadata, err := marshalJSONB(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET parent_folder_id = $2, metadata = metadata || $3::jsonb, updated_at = $4
WHERE id = $1
`, id, nullableString(folderID), metadata, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set parent folder: %w", err)
	}
	return requireAffected(result, "set parent folder", id)
}

func (r *DocumentRepository) FindByContentHash(ctx context.Context, ownerID, hash string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1 AND content_hash = $2
ORDER BY created_at DESC
`, ownerID, hash)
	if err != nil {
		return nil, fmt.Errorf("find by content hash: %w", err)
	}
	return collectDocuments(rows)
}

// SearchByTitle matches fragment case-insensitively anywhere in the title.
func (r *DocumentRepository) SearchByTitle(ctx context.Context, ownerID, fragment string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1 AND lower(title) LIKE $2 ESCAPE '\'
ORDER BY created_at DESC
LIMIT $3
`, ownerID, "%"+escapeLike(strings.ToLower(fragment))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search by title: %w", err)
	}
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var parent sql.NullString
	var status string
	var metadataRaw []byte

	err := row.Scan(
		&doc.ID, &doc.Title, &doc.OwnerID, &doc.StoragePath, &doc.MimeType, &doc.Size, &doc.ContentHash,
		&parent, &status, &metadataRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	metadata, err := unmarshalMetadata(metadataRaw)
	if err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	doc.ParentFolderID = parent.String
	doc.Status = domain.DocumentStatus(status)
	doc.Metadata = metadata
	return doc, nil
}

func requireAffected(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
