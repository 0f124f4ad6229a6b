// Package extractor turns uploaded file bytes into plain text for analysis.
//
// Extraction is best-effort: formats without a text layer, or files that fail
// to parse, yield a metadata placeholder so analysis always receives input.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// Format extracts text from one family of file types.
type Format interface {
	Name() string
	Supports(mimeType, ext string) bool
	Extract(ctx context.Context, data []byte) (string, error)
}

type Router struct {
	formats []Format
	logger  *slog.Logger
}

func NewRouter(logger *slog.Logger, formats ...Format) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	return &Router{formats: formats, logger: logger}
}

func DefaultFormats() []Format {
	return []Format{PlainText{}, PDF{}, Spreadsheet{}, HTML{}}
}

func (r *Router) Extract(ctx context.Context, file domain.File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mimeType := normalizeMime(file.MimeType)
	ext := strings.ToLower(filepath.Ext(file.Name))

	for _, format := range r.formats {
		if !format.Supports(mimeType, ext) {
			continue
		}
		text, err := format.Extract(ctx, file.Data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			r.logger.Warn("text_extraction_failed",
				"file_name", file.Name,
				"format", format.Name(),
				"error", err,
			)
			break
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		break
	}
	return Placeholder(file), nil
}

// Placeholder describes a file whose text could not be extracted.
func Placeholder(file domain.File) string {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("Document: %s\nType: %s\nSize: %d bytes\nNo text content could be extracted from this file.",
		file.Name, mimeType, file.Size())
}

func normalizeMime(raw string) string {
	mimeType := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
