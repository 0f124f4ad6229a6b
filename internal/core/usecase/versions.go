package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const maxVersionAttempts = 3

// VersionManager keeps exactly one current version per document and mirrors it onto the document.
type VersionManager struct {
	docs     ports.DocumentRepository
	versions ports.VersionRepository
	storage  ports.ObjectStorage
	logger   *slog.Logger
	now      func() time.Time
}

func NewVersionManager(
	docs ports.DocumentRepository,
	versions ports.VersionRepository,
	storage ports.ObjectStorage,
	logger *slog.Logger,
) *VersionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionManager{
		docs:     docs,
		versions: versions,
		storage:  storage,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordInitial marks the document's current bytes as version 1. It returns the
// existing current version when one is already recorded.
func (m *VersionManager) RecordInitial(ctx context.Context, doc *domain.Document, createdBy string) (string, error) {
	if current, err := m.currentVersion(ctx, doc.ID); err != nil || current != nil {
		if err != nil {
			return "", err
		}
		return current.ID, nil
	}

	v := m.initialVersion(doc, createdBy)
	if err := m.versions.PromoteVersion(ctx, v); err != nil {
		if domain.IsKind(err, domain.ErrVersionConflict) {
			current, lookupErr := m.currentVersion(ctx, doc.ID)
			if lookupErr == nil && current != nil {
				return current.ID, nil
			}
		}
		return "", fmt.Errorf("record initial version: %w", err)
	}
	m.logger.Info("version_recorded", "document_id", doc.ID, "version_id", v.ID, "version_number", 1)
	return v.ID, nil
}

// CreateVersion stores file as the next version and makes it current. A concurrent writer
// claiming the same number is detected by the store and the call retries with a fresh number.
func (m *VersionManager) CreateVersion(
	ctx context.Context,
	documentID string,
	file domain.File,
	createdBy, changeNote string,
) (string, error) {
	if len(file.Data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "create version", fmt.Errorf("file is empty"))
	}
	doc, err := m.docs.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load document for version: %w", err)
	}
	if strings.TrimSpace(createdBy) == "" {
		createdBy = doc.OwnerID
	}

	var lastErr error
	for attempt := 1; attempt <= maxVersionAttempts; attempt++ {
		next, err := m.nextVersionNumber(ctx, doc, createdBy)
		if err != nil {
			return "", err
		}

		v := &domain.DocumentVersion{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			VersionNumber: next,
			Title:         versionTitle(file.Name, doc.Title),
			CreatedBy:     createdBy,
			ChangeNote:    strings.TrimSpace(changeNote),
			Size:          file.Size(),
			MimeType:      versionMimeType(file.MimeType, doc.MimeType),
			ContentHash:   ContentHash(file.Data),
			CreatedAt:     m.now().UTC(),
		}
		v.StoragePath = VersionPath(doc.OwnerID, doc.ID, v.VersionNumber, v.ID, file.Name)

		if err := m.putVerified(ctx, v.StoragePath, file.Data); err != nil {
			return "", err
		}

		err = m.versions.PromoteVersion(ctx, v)
		if err == nil {
			m.logger.Info("version_created",
				"document_id", doc.ID,
				"version_id", v.ID,
				"version_number", v.VersionNumber,
			)
			return v.ID, nil
		}

		m.removeBestEffort(ctx, v.StoragePath)
		if !domain.IsKind(err, domain.ErrVersionConflict) {
			return "", fmt.Errorf("promote version: %w", err)
		}
		lastErr = err
		m.logger.Warn("version_number_conflict",
			"document_id", doc.ID,
			"version_number", v.VersionNumber,
			"attempt", attempt,
		)
	}
	return "", fmt.Errorf("create version after %d attempts: %w", maxVersionAttempts, lastErr)
}

// GetHistory lists versions newest first, materializing version 1 when none exist yet.
func (m *VersionManager) GetHistory(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	versions, err := m.versions.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(versions) > 0 {
		return versions, nil
	}

	doc, err := m.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.StoragePath) == "" {
		return []domain.DocumentVersion{}, nil
	}
	if _, err := m.RecordInitial(ctx, doc, doc.OwnerID); err != nil {
		return nil, err
	}
	return m.versions.ListVersions(ctx, documentID)
}

func (m *VersionManager) SwitchTo(ctx context.Context, documentID, versionID string) error {
	v, err := m.versions.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.DocumentID != documentID {
		return domain.WrapError(domain.ErrVersionNotFound, "switch version",
			fmt.Errorf("version %s does not belong to document %s", versionID, documentID))
	}
	if _, err := m.versions.SwitchCurrent(ctx, documentID, versionID); err != nil {
		return err
	}
	m.logger.Info("version_switched", "document_id", documentID, "version_id", versionID, "version_number", v.VersionNumber)
	return nil
}

// DeleteVersion refuses the current version. Bytes are removed best-effort before the row.
func (m *VersionManager) DeleteVersion(ctx context.Context, documentID, versionID string) error {
	v, err := m.versions.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.DocumentID != documentID {
		return domain.WrapError(domain.ErrVersionNotFound, "delete version",
			fmt.Errorf("version %s does not belong to document %s", versionID, documentID))
	}
	if v.IsCurrent {
		return domain.WrapError(domain.ErrCurrentVersion, "delete version",
			fmt.Errorf("version %d of document %s is current", v.VersionNumber, v.DocumentID))
	}

	if doc, err := m.docs.GetByID(ctx, v.DocumentID); err == nil && doc.StoragePath == v.StoragePath {
		m.logger.Warn("version_storage_shared", "document_id", v.DocumentID, "version_id", v.ID)
	} else {
		m.removeBestEffort(ctx, v.StoragePath)
	}

	if err := m.versions.DeleteVersion(ctx, versionID); err != nil {
		return err
	}
	m.logger.Info("version_deleted", "document_id", v.DocumentID, "version_id", v.ID, "version_number", v.VersionNumber)
	return nil
}

func (m *VersionManager) currentVersion(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	versions, err := m.versions.ListVersions(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	for i := range versions {
		if versions[i].IsCurrent {
			return &versions[i], nil
		}
	}
	return nil, nil
}

// nextVersionNumber backfills version 1 from the document's pre-upload state when history is empty.
func (m *VersionManager) nextVersionNumber(ctx context.Context, doc *domain.Document, createdBy string) (int, error) {
	highest, ok, err := m.versions.MaxVersionNumber(ctx, doc.ID)
	if err != nil {
		return 0, err
	}
	if ok {
		return highest + 1, nil
	}
	if _, err := m.RecordInitial(ctx, doc, createdBy); err != nil {
		return 0, fmt.Errorf("backfill initial version: %w", err)
	}
	return 2, nil
}

func (m *VersionManager) initialVersion(doc *domain.Document, createdBy string) *domain.DocumentVersion {
	if strings.TrimSpace(createdBy) == "" {
		createdBy = doc.OwnerID
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now().UTC()
	}
	return &domain.DocumentVersion{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		VersionNumber: 1,
		StoragePath:   doc.StoragePath,
		Title:         doc.Title,
		CreatedBy:     createdBy,
		ChangeNote:    "Original upload",
		Size:          doc.Size,
		MimeType:      doc.MimeType,
		ContentHash:   doc.ContentHash,
		CreatedAt:     createdAt,
	}
}

// putVerified uploads data and confirms the object is listed under its prefix.
func (m *VersionManager) putVerified(ctx context.Context, key string, data []byte) error {
	if err := m.storage.PutObject(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store version bytes: %w", err)
	}
	objects, err := m.storage.ListObjects(ctx, path.Dir(key))
	if err != nil {
		return fmt.Errorf("verify version bytes: %w", err)
	}
	for _, obj := range objects {
		if obj.Path == key {
			return nil
		}
	}
	return domain.WrapError(domain.ErrTemporary, "verify version bytes", fmt.Errorf("object %s not listed after upload", key))
}

func (m *VersionManager) removeBestEffort(ctx context.Context, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if err := m.storage.RemoveObject(ctx, key); err != nil {
		m.logger.Warn("version_storage_remove_failed", "path", key, "error", err)
	}
}

// VersionPath namespaces version bytes by document, number and version id so no
// two versions ever share an object.
func VersionPath(ownerID, documentID string, number int, versionID, fileName string) string {
	short := versionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s/%s/versions/v%d_%s_%s", ownerID, documentID, number, short, sanitizeFilename(fileName))
}

// UploadPath is the primary object path for a fresh upload.
func UploadPath(ownerID, documentID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%s/%d_%s", ownerID, documentID, at.Unix(), sanitizeFilename(fileName))
}

func versionTitle(fileName, fallback string) string {
	if name := strings.TrimSpace(filepath.Base(fileName)); name != "" && name != "." {
		return name
	}
	return fallback
}

func versionMimeType(uploaded, fallback string) string {
	if mimeType := strings.TrimSpace(uploaded); mimeType != "" {
		return mimeType
	}
	return fallback
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}
