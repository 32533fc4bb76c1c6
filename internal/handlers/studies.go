package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// StudyService is the federation surface used over HTTP
type StudyService interface {
	SearchStudies(ctx context.Context, criteria models.QueryParams) result.Result[*models.ImagingSearchResult]
	GetStudyDetails(ctx context.Context, studyUID string) result.Result[*models.Study]
	GetViewerURL(ctx context.Context, studyUID, sessionID string) result.Result[string]
	CreatePatientSession(ctx context.Context, patientID, studyUID string, accessType models.AccessType, viewer models.ViewerKind) result.Result[*models.ImagingSession]
	GetSession(ctx context.Context, sessionID string) result.Result[*models.ImagingSession]
	LogSessionAction(ctx context.Context, sessionID string, action models.SessionAction) result.Result[*models.ImagingSession]
}

type StudyHandler struct {
	studies StudyService
}

func NewStudyHandler(studies StudyService) *StudyHandler {
	return &StudyHandler{studies: studies}
}

// Register mounts the study and session routes
func (h *StudyHandler) Register(r chi.Router) {
	r.Get("/studies", h.SearchStudies)
	r.Get("/studies/{studyUID}", h.GetStudy)
	r.Get("/studies/{studyUID}/viewer-url", h.GetViewerURL)

	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Post("/sessions/{id}/actions", h.LogSessionAction)
}

// SearchStudies handles a federated study search
func (h *StudyHandler) SearchStudies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.QueryParams{
		StudyInstanceUID: q.Get("studyInstanceUid"),
		PatientID:        q.Get("patientId"),
		PatientName:      q.Get("patientName"),
		StudyDate:        q.Get("studyDate"),
		AccessionNumber:  q.Get("accessionNumber"),
		Modality:         q.Get("modality"),
		StudyDescription: q.Get("studyDescription"),
	}

	var err error
	if params.Limit, err = intParam(q.Get("limit")); err != nil {
		badRequest(w, r, "limit must be a non-negative integer")
		return
	}
	if params.Offset, err = intParam(q.Get("offset")); err != nil {
		badRequest(w, r, "offset must be a non-negative integer")
		return
	}

	writeResult(w, r, h.studies.SearchStudies(r.Context(), params), http.StatusOK)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// GetStudy returns a study with its series and instances
func (h *StudyHandler) GetStudy(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.studies.GetStudyDetails(r.Context(), chi.URLParam(r, "studyUID")), http.StatusOK)
}

// GetViewerURL returns the viewer deep link for a study
func (h *StudyHandler) GetViewerURL(w http.ResponseWriter, r *http.Request) {
	res := h.studies.GetViewerURL(r.Context(), chi.URLParam(r, "studyUID"), r.URL.Query().Get("sessionId"))
	writeResult(w, r, res, http.StatusOK)
}

type createSessionRequest struct {
	PatientID        string            `json:"patientId"`
	StudyInstanceUID string            `json:"studyInstanceUid"`
	AccessType       models.AccessType `json:"accessType,omitempty"`
	Viewer           models.ViewerKind `json:"viewer,omitempty"`
}

// CreateSession mints a viewing session after the consent check
func (h *StudyHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if req.PatientID == "" || req.StudyInstanceUID == "" {
		badRequest(w, r, "patientId and studyInstanceUid are required")
		return
	}
	if req.AccessType != "" && !req.AccessType.Valid() {
		badRequest(w, r, "unknown accessType")
		return
	}

	res := h.studies.CreatePatientSession(r.Context(), req.PatientID, req.StudyInstanceUID, req.AccessType, req.Viewer)
	writeResult(w, r, res, http.StatusCreated)
}

// GetSession returns a live session
func (h *StudyHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.studies.GetSession(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

// LogSessionAction appends to a session's action log
func (h *StudyHandler) LogSessionAction(w http.ResponseWriter, r *http.Request) {
	var action models.SessionAction
	if err := decode(r, &action); err != nil || action.Action == "" {
		badRequest(w, r, "action is required")
		return
	}
	// the session store stamps the time
	action.Timestamp = time.Time{}

	writeResult(w, r, h.studies.LogSessionAction(r.Context(), chi.URLParam(r, "id"), action), http.StatusOK)
}
