package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/rs/zerolog/log"
)

// ArchiveStore persists archive definitions
type ArchiveStore interface {
	Create(ctx context.Context, archive *models.ArchiveServer) error
	GetByID(ctx context.Context, id string) (*models.ArchiveServer, error)
	List(ctx context.Context) ([]models.ArchiveServer, error)
	Update(ctx context.Context, archive *models.ArchiveServer) error
	Delete(ctx context.Context, id string) error
	SetPrimary(ctx context.Context, id string) error
}

// RegistryReloader refreshes the in-memory registry from storage
type RegistryReloader interface {
	Reload(ctx context.Context) error
}

// ConnectionTester checks a registered archive
type ConnectionTester interface {
	TestConnection(ctx context.Context, archiveID string) result.Result[*models.ConnectionStatus]
}

type ManagementHandler struct {
	store    ArchiveStore
	registry RegistryReloader
	tester   ConnectionTester
}

func NewManagementHandler(store ArchiveStore, registry RegistryReloader, tester ConnectionTester) *ManagementHandler {
	return &ManagementHandler{
		store:    store,
		registry: registry,
		tester:   tester,
	}
}

// Register mounts the archive management routes
func (h *ManagementHandler) Register(r chi.Router) {
	r.Get("/archives", h.ListArchives)
	r.Post("/archives", h.CreateArchive)
	r.Put("/archives/primary", h.SetPrimary)
	r.Get("/archives/{id}", h.GetArchive)
	r.Put("/archives/{id}", h.UpdateArchive)
	r.Delete("/archives/{id}", h.DeleteArchive)
	r.Post("/archives/{id}/test", h.TestConnection)
}

func meta(r *http.Request) *result.Metadata {
	return result.NewMetadata(r.Context(), time.Now().UTC(), "")
}

// ListArchives lists every stored archive, active or not
func (h *ManagementHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	archives, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list archives")
		writeResult(w, r, result.Fail[[]models.ArchiveServer](result.CodeInternal, err.Error(), nil, meta(r)), http.StatusOK)
		return
	}
	writeResult(w, r, result.OK(archives, meta(r)), http.StatusOK)
}

// CreateArchive registers a new archive
func (h *ManagementHandler) CreateArchive(w http.ResponseWriter, r *http.Request) {
	var req models.ArchiveRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	archive := req.ToArchive()
	if err := h.store.Create(r.Context(), archive); err != nil {
		log.Error().Err(err).Msg("Failed to create archive")
		writeResult(w, r, result.Fail[*models.ArchiveServer](result.CodeInternal, "failed to create archive", nil, meta(r)), http.StatusCreated)
		return
	}
	h.reload(r.Context())

	log.Info().Str("archive_id", archive.ID).Str("type", string(archive.Type)).Msg("Archive registered")
	writeResult(w, r, result.OK(archive, meta(r)), http.StatusCreated)
}

// GetArchive returns one stored archive
func (h *ManagementHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	archive, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeResult(w, r, result.Fail[*models.ArchiveServer](storeCode(err), err.Error(), map[string]string{"archiveId": id}, meta(r)), http.StatusOK)
		return
	}
	writeResult(w, r, result.OK(archive, meta(r)), http.StatusOK)
}

// UpdateArchive replaces an archive's definition. The primary flag and
// connection history are kept.
func (h *ManagementHandler) UpdateArchive(w http.ResponseWriter, r *http.Request) {
	var req models.ArchiveRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if req.ID != "" && req.ID != id {
		badRequest(w, r, "id in body does not match path")
		return
	}
	archive, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeResult(w, r, result.Fail[*models.ArchiveServer](storeCode(err), err.Error(), map[string]string{"archiveId": id}, meta(r)), http.StatusOK)
		return
	}

	req.Apply(archive)
	if err := h.store.Update(r.Context(), archive); err != nil {
		log.Error().Err(err).Str("archive_id", id).Msg("Failed to update archive")
		writeResult(w, r, result.Fail[*models.ArchiveServer](result.CodeInternal, "failed to update archive", nil, meta(r)), http.StatusOK)
		return
	}
	h.reload(r.Context())

	log.Info().Str("archive_id", id).Bool("active", archive.IsActive).Msg("Archive updated")
	writeResult(w, r, result.OK(archive, meta(r)), http.StatusOK)
}

// DeleteArchive removes an archive from the registry
func (h *ManagementHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		log.Warn().Err(err).Str("archive_id", id).Msg("Failed to delete archive")
		writeResult(w, r, result.Fail[string](storeCode(err), err.Error(), map[string]string{"archiveId": id}, meta(r)), http.StatusOK)
		return
	}
	h.reload(r.Context())

	log.Info().Str("archive_id", id).Msg("Archive deleted")
	writeResult(w, r, result.OK(id, meta(r)), http.StatusOK)
}

type setPrimaryRequest struct {
	ArchiveID string `json:"archiveId"`
}

// SetPrimary makes an archive the primary
func (h *ManagementHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	var req setPrimaryRequest
	if err := decode(r, &req); err != nil || req.ArchiveID == "" {
		badRequest(w, r, "archiveId is required")
		return
	}

	if err := h.store.SetPrimary(r.Context(), req.ArchiveID); err != nil {
		log.Warn().Err(err).Str("archive_id", req.ArchiveID).Msg("Failed to set primary archive")
		writeResult(w, r, result.Fail[string](storeCode(err), err.Error(), req, meta(r)), http.StatusOK)
		return
	}
	h.reload(r.Context())

	writeResult(w, r, result.OK(req.ArchiveID, meta(r)), http.StatusOK)
}

// TestConnection checks an archive. A failed check still reports the status.
func (h *ManagementHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	res := h.tester.TestConnection(r.Context(), chi.URLParam(r, "id"))
	writeResult(w, r, res, http.StatusOK)
}

// storeCode maps a missing row to SERVER_NOT_FOUND
func storeCode(err error) result.Code {
	if errors.Is(err, repository.ErrNotFound) {
		return result.CodeServerNotFound
	}
	return result.CodeInternal
}

func (h *ManagementHandler) reload(ctx context.Context) {
	if err := h.registry.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to reload archive registry")
	}
}
