// Package registry holds the set of known imaging archives and resolves the
// primary and viewer-capable archive from it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrNoArchive       = errors.New("no archive available")
	ErrNoViewerArchive = errors.New("no viewer-capable archive available")
	ErrNotFound        = errors.New("archive not found")
)

// ArchiveSource loads archive definitions from storage. PrimaryID returns ""
// when storage holds no primary, in which case the configured id is kept.
type ArchiveSource interface {
	List(ctx context.Context) ([]models.ArchiveServer, error)
	PrimaryID(ctx context.Context) (string, error)
}

type snapshot struct {
	servers   []models.ArchiveServer
	primaryID string
}

// Registry is safe for concurrent use. Register and SetPrimary swap a whole
// snapshot so readers see either the old or the new set.
type Registry struct {
	current atomic.Pointer[snapshot]
	source  ArchiveSource
	logger  zerolog.Logger
}

// New creates an empty registry with the configured primary archive id
func New(primaryID string, source ArchiveSource, logger zerolog.Logger) *Registry {
	r := &Registry{
		source: source,
		logger: logger.With().Str("component", "registry").Logger(),
	}
	r.current.Store(&snapshot{primaryID: primaryID})
	return r
}

// Register replaces the registered archives. Order is registration order.
func (r *Registry) Register(servers []models.ArchiveServer) {
	r.replace(servers, nil)
}

// replace swaps in a new server set and, when primaryID is non-nil, a new
// configured primary in the same snapshot
func (r *Registry) replace(servers []models.ArchiveServer, primaryID *string) {
	cp := make([]models.ArchiveServer, len(servers))
	copy(cp, servers)

	for {
		old := r.current.Load()
		next := &snapshot{servers: cp, primaryID: old.primaryID}
		if primaryID != nil {
			next.primaryID = *primaryID
		}
		if r.current.CompareAndSwap(old, next) {
			break
		}
	}

	r.logger.Info().Int("archives", len(cp)).Msg("Archive registry replaced")
}

// SetPrimary changes the configured primary archive id
func (r *Registry) SetPrimary(id string) {
	for {
		old := r.current.Load()
		next := &snapshot{servers: old.servers, primaryID: id}
		if r.current.CompareAndSwap(old, next) {
			return
		}
	}
}

// PrimaryID returns the configured primary id, which may not be resolvable
func (r *Registry) PrimaryID() string {
	return r.current.Load().primaryID
}

// Primary returns the configured primary if it is active, else the first
// active archive in registration order.
func (r *Registry) Primary() (models.ArchiveServer, error) {
	snap := r.current.Load()

	if snap.primaryID != "" {
		for _, s := range snap.servers {
			if s.ID == snap.primaryID && s.IsActive {
				return s, nil
			}
		}
	}

	for _, s := range snap.servers {
		if s.IsActive {
			return s, nil
		}
	}

	return models.ArchiveServer{}, ErrNoArchive
}

// List returns all active archives in registration order
func (r *Registry) List() []models.ArchiveServer {
	snap := r.current.Load()
	active := make([]models.ArchiveServer, 0, len(snap.servers))
	for _, s := range snap.servers {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active
}

// Find returns a registered archive by id, active or not
func (r *Registry) Find(id string) (models.ArchiveServer, error) {
	for _, s := range r.current.Load().servers {
		if s.ID == id {
			return s, nil
		}
	}
	return models.ArchiveServer{}, ErrNotFound
}

// Viewer returns the first active viewer-capable archive
func (r *Registry) Viewer() (models.ArchiveServer, error) {
	for _, s := range r.current.Load().servers {
		if s.IsActive && s.IsViewer() {
			return s, nil
		}
	}
	return models.ArchiveServer{}, ErrNoViewerArchive
}

// Reload replaces the registry contents from the archive source
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	servers, err := r.source.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load archives: %w", err)
	}
	primaryID, err := r.source.PrimaryID(ctx)
	if err != nil {
		return fmt.Errorf("failed to load primary archive: %w", err)
	}

	if primaryID == "" {
		r.Register(servers)
		return nil
	}
	r.replace(servers, &primaryID)
	return nil
}
