package httpadapter

import (
	"net/http"

	"github.com/kirillkom/textify/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound), domain.IsKind(err, domain.ErrExportNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrCameraDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrCameraUnsupported):
		return http.StatusNotImplemented
	case domain.IsKind(err, domain.ErrCameraInactive), domain.IsKind(err, domain.ErrNothingToExport):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
