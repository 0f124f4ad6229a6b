package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const (
	unknownClientFolder = "Unassigned Client"
	unknownFormFolder   = "Unclassified Forms"
)

// Categorizer files a document under client/form folders derived from its analysis.
type Categorizer struct {
	docs    ports.DocumentRepository
	folders ports.FolderRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewCategorizer(docs ports.DocumentRepository, folders ports.FolderRepository, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{docs: docs, folders: folders, logger: logger, now: time.Now}
}

// Apply is idempotent: folders are looked up before they are created.
func (c *Categorizer) Apply(ctx context.Context, documentID string, result *domain.AnalysisResult) error {
	if result == nil {
		return domain.WrapError(domain.ErrInvalidInput, "categorize document", fmt.Errorf("analysis result is required"))
	}
	doc, err := c.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document for categorization: %w", err)
	}

	clientName := strings.TrimSpace(result.ClientName)
	if clientName == "" {
		if hint, _ := doc.Metadata[domain.MetaClientHint].(string); strings.TrimSpace(hint) != "" {
			clientName = strings.TrimSpace(hint)
		} else {
			clientName = unknownClientFolder
		}
	}
	formTitle := FormFolderTitle(result.FormNumber, result.FormType)

	clientFolder, err := c.ensureFolder(ctx, clientName, "", doc.OwnerID, domain.FolderClient, map[string]any{
		"auto_created": true,
		"client_name":  clientName,
	})
	if err != nil {
		return err
	}
	formFolder, err := c.ensureFolder(ctx, formTitle, clientFolder.ID, doc.OwnerID, domain.FolderForm, map[string]any{
		"auto_created": true,
		"client_name":  clientName,
		"form_number":  result.FormNumber,
		"form_type":    result.FormType,
	})
	if err != nil {
		return err
	}

	patch := map[string]any{
		domain.MetaCategorization: map[string]any{
			"categorized_at":   c.now().UTC().Format(time.RFC3339),
			"client_name":      clientName,
			"form_number":      result.FormNumber,
			"form_type":        result.FormType,
			"client_folder_id": clientFolder.ID,
			"form_folder_id":   formFolder.ID,
		},
	}
	if err := c.docs.SetParentFolder(ctx, doc.ID, formFolder.ID, patch); err != nil {
		return fmt.Errorf("set document folder: %w", err)
	}
	c.logger.Info("document_categorized",
		"document_id", doc.ID,
		"client_folder_id", clientFolder.ID,
		"form_folder_id", formFolder.ID,
	)
	return nil
}

func (c *Categorizer) ensureFolder(
	ctx context.Context,
	title, parentID, ownerID string,
	folderType domain.FolderType,
	metadata map[string]any,
) (*domain.Folder, error) {
	existing, err := c.folders.FindFolder(ctx, title, parentID, ownerID, folderType)
	if err != nil {
		return nil, fmt.Errorf("find %s folder %q: %w", folderType, title, err)
	}
	if existing != nil {
		return existing, nil
	}

	folder := &domain.Folder{
		ID:        uuid.NewString(),
		Title:     title,
		ParentID:  parentID,
		OwnerID:   ownerID,
		Type:      folderType,
		Metadata:  metadata,
		CreatedAt: c.now().UTC(),
	}
	if err := c.folders.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("create %s folder %q: %w", folderType, title, err)
	}
	return folder, nil
}

// FormFolderTitle renders "{formNumber} - {formType}", tolerating missing halves.
func FormFolderTitle(formNumber, formType string) string {
	number := strings.TrimSpace(formNumber)
	kind := strings.TrimSpace(formType)
	switch {
	case number != "" && kind != "":
		return number + " - " + kind
	case kind != "":
		return kind
	case number != "":
		return "Form " + number
	default:
		return unknownFormFolder
	}
}
