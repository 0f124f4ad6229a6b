package httpadapter

import (
	"net/http"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrVersionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicate),
		domain.IsKind(err, domain.ErrCurrentVersion),
		domain.IsKind(err, domain.ErrVersionConflict):
		return http.StatusConflict
	// Offline wraps the exhausted RetrievalError; the transient reading wins.
	case domain.IsKind(err, domain.ErrOffline), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRetrievalExhausted), domain.IsKind(err, domain.ErrAnalysisFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
