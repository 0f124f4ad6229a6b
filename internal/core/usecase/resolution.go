package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

type documentProcessor interface {
	Process(ctx context.Context, file domain.File, ownerID string, opts domain.ProcessOptions) (*domain.ProcessResult, error)
}

type versionCreator interface {
	CreateVersion(ctx context.Context, documentID string, file domain.File, createdBy, changeNote string) (string, error)
}

// ResolveDuplicateUseCase applies the caller's decision for a reported duplicate.
type ResolveDuplicateUseCase struct {
	docs      ports.DocumentRepository
	versions  versionCreator
	processor documentProcessor
	logger    *slog.Logger
}

func NewResolveDuplicateUseCase(
	docs ports.DocumentRepository,
	versions versionCreator,
	processor documentProcessor,
	logger *slog.Logger,
) *ResolveDuplicateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveDuplicateUseCase{docs: docs, versions: versions, processor: processor, logger: logger}
}

func (uc *ResolveDuplicateUseCase) Resolve(ctx context.Context, req ports.ResolutionRequest) (*ports.ResolutionOutcome, error) {
	if !req.Resolution.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve duplicate", fmt.Errorf("unknown resolution %q", req.Resolution))
	}
	outcome := &ports.ResolutionOutcome{Resolution: req.Resolution}

	switch req.Resolution {
	case domain.ResolutionCancel:
		uc.logger.Info("duplicate_upload_cancelled", "owner_id", req.OwnerID, "existing_id", req.ExistingID)
		return outcome, nil

	case domain.ResolutionReplace, domain.ResolutionVersion:
		if strings.TrimSpace(req.ExistingID) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "resolve duplicate", errors.New("existing document id is required"))
		}
		existing, err := uc.docs.GetByID(ctx, req.ExistingID)
		if err != nil {
			return nil, err
		}
		if existing.OwnerID != req.OwnerID {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "resolve duplicate",
				fmt.Errorf("document %s not owned by %s", req.ExistingID, req.OwnerID))
		}
		note := strings.TrimSpace(req.ChangeNote)
		if note == "" {
			note = defaultChangeNote(req.Resolution)
		}
		versionID, err := uc.versions.CreateVersion(ctx, existing.ID, req.File, req.OwnerID, note)
		if err != nil {
			return nil, err
		}
		outcome.DocumentID = existing.ID
		outcome.VersionID = versionID
		uc.logger.Info("duplicate_resolved_as_version",
			"resolution", req.Resolution,
			"document_id", existing.ID,
			"version_id", versionID,
		)
		return outcome, nil

	default:
		title := strings.TrimSpace(req.NewTitle)
		if title == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "resolve duplicate", errors.New("new title is required for rename"))
		}
		result, err := uc.processor.Process(ctx, req.File, req.OwnerID, domain.ProcessOptions{
			SkipDuplicateCheck: true,
			Title:              title,
		})
		outcome.Process = result
		if result != nil {
			outcome.DocumentID = result.DocumentID
		}
		if err != nil {
			return outcome, err
		}
		return outcome, nil
	}
}

func defaultChangeNote(resolution domain.DuplicateResolution) string {
	if resolution == domain.ResolutionReplace {
		return "Replaced by duplicate upload"
	}
	return "New version from duplicate upload"
}
