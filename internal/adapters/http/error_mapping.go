package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Engine      string `json:"engine,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrNoDocuments):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDependencyMissing):
		return http.StatusFailedDependency
	case domain.IsKind(err, domain.ErrEmbeddingService), domain.IsKind(err, domain.ErrCompletionService):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTransientStorage), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrNoDocuments):
		return "no_documents"
	case domain.IsKind(err, domain.ErrDependencyMissing):
		return "dependency_missing"
	case domain.IsKind(err, domain.ErrConfiguration):
		return "configuration"
	case domain.IsKind(err, domain.ErrEmbeddingService):
		return "embedding_service"
	case domain.IsKind(err, domain.ErrCompletionService):
		return "completion_service"
	case domain.IsKind(err, domain.ErrTransientStorage):
		return "transient_storage"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	resp := errorResponse{
		Error: err.Error(),
		Kind:  errorKind(err),
	}
	var depErr *domain.DependencyMissingError
	if errors.As(err, &depErr) {
		resp.Engine = depErr.Engine
		resp.Remediation = depErr.Remediation
	}
	if domain.IsKind(err, domain.ErrTemporary) || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "10")
	}
	writeJSON(w, status, resp)
}
