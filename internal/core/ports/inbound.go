package ports

import (
	"context"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// DocumentIngestor is the inbound contract for the ingestion pipeline.
type DocumentIngestor interface {
	Process(ctx context.Context, file domain.File, ownerID string, opts domain.ProcessOptions) (*domain.ProcessResult, error)
	Submit(ctx context.Context, file domain.File, ownerID string, opts domain.ProcessOptions) (*domain.ProcessResult, error)
	GetStatus(ctx context.Context, documentID string) (*domain.PipelineState, error)
}

// DocumentProcessor resumes asynchronously submitted ingestions.
type DocumentProcessor interface {
	Resume(ctx context.Context, documentID string) (*domain.ProcessResult, error)
}

// DuplicateChecker decides whether an upload already exists for the owner.
// It never fails: lookup errors yield a non-duplicate result with a recommendation.
type DuplicateChecker interface {
	Check(ctx context.Context, file domain.File, ownerID string) domain.DuplicateCheck
}

// DuplicateResolver applies the caller's choice after a duplicate was reported.
type DuplicateResolver interface {
	Resolve(ctx context.Context, req ResolutionRequest) (*ResolutionOutcome, error)
}

type ResolutionRequest struct {
	Resolution domain.DuplicateResolution
	ExistingID string
	File       domain.File
	OwnerID    string
	NewTitle   string
	ChangeNote string
}

type ResolutionOutcome struct {
	Resolution domain.DuplicateResolution `json:"resolution"`
	DocumentID string                     `json:"document_id,omitempty"`
	VersionID  string                     `json:"version_id,omitempty"`
	Process    *domain.ProcessResult      `json:"process,omitempty"`
}

// VersionService maintains document version history.
type VersionService interface {
	CreateVersion(ctx context.Context, documentID string, file domain.File, createdBy, changeNote string) (string, error)
	GetHistory(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)
	SwitchTo(ctx context.Context, documentID, versionID string) error
	DeleteVersion(ctx context.Context, documentID, versionID string) error
}

// DocumentRetriever resolves usable URLs and content for stored documents.
type DocumentRetriever interface {
	Resolve(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (*domain.Resolution, error)
	Download(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (*domain.Resolution, error)
}

// DocumentReader is the inbound read model for document metadata.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}
