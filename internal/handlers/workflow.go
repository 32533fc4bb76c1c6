package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/imaging-gateway/internal/middleware"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// WorkflowService is the workflow surface used over HTTP
type WorkflowService interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) result.Result[*models.ImagingOrder]
	GetOrder(ctx context.Context, orderID string) result.Result[*models.ImagingOrder]
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, notes string) result.Result[*models.ImagingOrder]
	CreateReport(ctx context.Context, req models.ReportRequest) result.Result[*models.ImagingReport]
	GetReport(ctx context.Context, reportID string) result.Result[*models.ImagingReport]
	UpdateReportStatus(ctx context.Context, reportID string, status models.ReportStatus) result.Result[*models.ImagingReport]
	GrantPatientAccess(ctx context.Context, req models.AccessGrantRequest) result.Result[*models.PatientImagingAccess]
	RevokePatientAccess(ctx context.Context, grantID string) result.Result[string]
	GetPatientAccessibleStudies(ctx context.Context, patientID string) result.Result[[]models.Study]
	GetProviderWorkflow(ctx context.Context, providerID, patientID string) result.Result[*models.ProviderWorkflow]
}

type WorkflowHandler struct {
	workflow WorkflowService
}

func NewWorkflowHandler(workflow WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// Register mounts the order, report and access routes
func (h *WorkflowHandler) Register(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{id}", h.GetOrder)
	r.Patch("/orders/{id}/status", h.UpdateOrderStatus)

	r.Post("/reports", h.CreateReport)
	r.Get("/reports/{id}", h.GetReport)
	r.Patch("/reports/{id}/status", h.UpdateReportStatus)

	r.Post("/access", h.GrantAccess)
	r.Delete("/access/{id}", h.RevokeAccess)

	r.Get("/patients/{patientID}/studies", h.PatientStudies)
	r.Get("/providers/{providerID}/patients/{patientID}/workflow", h.ProviderWorkflow)
}

func (h *WorkflowHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if req.OrderingProviderID == "" {
		req.OrderingProviderID = middleware.CallerID(r.Context())
	}
	writeResult(w, r, h.workflow.CreateOrder(r.Context(), req), http.StatusCreated)
}

func (h *WorkflowHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.workflow.GetOrder(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
	Notes  string             `json:"notes,omitempty"`
}

func (h *WorkflowHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if err := decode(r, &req); err != nil || req.Status == "" {
		badRequest(w, r, "status is required")
		return
	}
	res := h.workflow.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Notes)
	writeResult(w, r, res, http.StatusOK)
}

func (h *WorkflowHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if req.RadiologistID == "" {
		req.RadiologistID = middleware.CallerID(r.Context())
	}
	writeResult(w, r, h.workflow.CreateReport(r.Context(), req), http.StatusCreated)
}

func (h *WorkflowHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.workflow.GetReport(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

type reportStatusRequest struct {
	Status models.ReportStatus `json:"status"`
}

func (h *WorkflowHandler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	var req reportStatusRequest
	if err := decode(r, &req); err != nil || req.Status == "" {
		badRequest(w, r, "status is required")
		return
	}
	writeResult(w, r, h.workflow.UpdateReportStatus(r.Context(), chi.URLParam(r, "id"), req.Status), http.StatusOK)
}

func (h *WorkflowHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	var req models.AccessGrantRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if req.GrantingProviderID == "" {
		req.GrantingProviderID = middleware.CallerID(r.Context())
	}
	writeResult(w, r, h.workflow.GrantPatientAccess(r.Context(), req), http.StatusCreated)
}

func (h *WorkflowHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.workflow.RevokePatientAccess(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

func (h *WorkflowHandler) PatientStudies(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.workflow.GetPatientAccessibleStudies(r.Context(), chi.URLParam(r, "patientID")), http.StatusOK)
}

func (h *WorkflowHandler) ProviderWorkflow(w http.ResponseWriter, r *http.Request) {
	res := h.workflow.GetProviderWorkflow(r.Context(), chi.URLParam(r, "providerID"), chi.URLParam(r, "patientID"))
	writeResult(w, r, res, http.StatusOK)
}
