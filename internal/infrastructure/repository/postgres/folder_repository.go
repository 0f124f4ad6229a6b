package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

type FolderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// FindFolder returns nil, nil when no folder matches the tuple.
func (r *FolderRepository) FindFolder(ctx context.Context, title, parentID, ownerID string, folderType domain.FolderType) (*domain.Folder, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, parent_id, owner_id, folder_type, metadata, created_at
FROM folders
WHERE title = $1 AND COALESCE(parent_id, '') = $2 AND owner_id = $3 AND folder_type = $4
ORDER BY created_at ASC
LIMIT 1
`, title, parentID, ownerID, string(folderType))

	var folder domain.Folder
	var parent sql.NullString
	var kind string
	var metadataRaw []byte
	err := row.Scan(&folder.ID, &folder.Title, &parent, &folder.OwnerID, &kind, &metadataRaw, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	metadata, err := unmarshalMetadata(metadataRaw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal folder metadata: %w", err)
	}
	folder.ParentID = parent.String
	folder.Type = domain.FolderType(kind)
	folder.Metadata = metadata
	return &folder, nil
}

func (r *FolderRepository) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	metadata, err := marshalJSONB(folder.Metadata)
	if err != nil {
		return fmt.Errorf("marshal folder metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO folders (id, title, parent_id, owner_id, folder_type, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, folder.ID, folder.Title, nullableString(folder.ParentID), folder.OwnerID, string(folder.Type), metadata, folder.CreatedAt)
	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}
