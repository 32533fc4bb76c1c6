package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/rs/zerolog/log"
)

// AuditReader reads the audit trail
type AuditReader interface {
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]models.AuditLog, error)
	ListByResourceUID(ctx context.Context, resourceUID string) ([]models.AuditLog, error)
}

const defaultAuditLimit = 50

type AuditHandler struct {
	audit AuditReader
}

func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Register mounts the audit routes
func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit", h.ListAudit)
}

// ListAudit returns audit entries for a patient (paged) or for one resource.
// Exactly one of patientId and resourceUid is required.
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	patientID, resourceUID := q.Get("patientId"), q.Get("resourceUid")
	if (patientID == "") == (resourceUID == "") {
		badRequest(w, r, "exactly one of patientId or resourceUid is required")
		return
	}

	var (
		logs []models.AuditLog
		err  error
	)
	if resourceUID != "" {
		logs, err = h.audit.ListByResourceUID(r.Context(), resourceUID)
	} else {
		limit, lerr := intParam(q.Get("limit"))
		offset, oerr := intParam(q.Get("offset"))
		if lerr != nil || oerr != nil {
			badRequest(w, r, "limit and offset must be non-negative integers")
			return
		}
		if limit == 0 {
			limit = defaultAuditLimit
		}
		logs, err = h.audit.ListByPatient(r.Context(), patientID, limit, offset)
	}
	if err != nil {
		log.Error().Err(err).Str("patient_id", patientID).Str("resource_uid", resourceUID).Msg("Failed to read audit trail")
		writeResult(w, r, result.Fail[[]models.AuditLog](result.CodeInternal, "failed to read audit trail", nil, meta(r)), http.StatusOK)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	writeResult(w, r, result.OK(logs, meta(r)), http.StatusOK)
}
