// Package federation searches and retrieves studies across the registered
// archives and mints viewing sessions once consent has been checked.
package federation

import (
	"context"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/adapters"
	"github.com/otcheredev/imaging-gateway/internal/cache"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/registry"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
	"github.com/otcheredev/imaging-gateway/pkg/idgen"
	"github.com/rs/zerolog"
)

const (
	DefaultArchiveTimeout = 10 * time.Second
	DefaultSessionTTL     = time.Hour
	DefaultStudyCacheTTL  = 5 * time.Minute
	DefaultPageSize       = 10
)

// AdapterProvider hands out the transport for an archive
type AdapterProvider interface {
	GetAdapter(archive models.ArchiveServer) (adapters.ArchiveAdapter, error)
}

// AccessChecker answers consent questions
type AccessChecker interface {
	HasValidAccess(ctx context.Context, patientID, studyUID string, accessType models.AccessType) (bool, error)
}

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// StatusRecorder persists connection test outcomes
type StatusRecorder interface {
	UpdateConnectionStatus(ctx context.Context, id string, status *models.ConnectionStatus) error
}

// Options tunes timeouts and TTLs. Zero values take the defaults.
type Options struct {
	ArchiveTimeout time.Duration
	SessionTTL     time.Duration
	StudyCacheTTL  time.Duration
}

// Deps are the collaborators of a Service. Cache, Audit and Statuses are
// optional.
type Deps struct {
	Registry *registry.Registry
	Adapters AdapterProvider
	Access   AccessChecker
	Sessions *cache.SessionStore
	Cache    cache.Cache
	Audit    AuditRecorder
	Statuses StatusRecorder
	IDs      idgen.Generator
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Service is the federation and retrieval service
type Service struct {
	registry *registry.Registry
	adapters AdapterProvider
	access   AccessChecker
	sessions *cache.SessionStore
	cache    cache.Cache
	audit    AuditRecorder
	statuses StatusRecorder
	ids      idgen.Generator
	clock    clock.Clock
	opts     Options
	logger   zerolog.Logger
}

// NewService creates a federation service
func NewService(deps Deps, opts Options) *Service {
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = DefaultArchiveTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.StudyCacheTTL <= 0 {
		opts.StudyCacheTTL = DefaultStudyCacheTTL
	}
	if deps.IDs == nil {
		deps.IDs = idgen.NewUUID()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	return &Service{
		registry: deps.Registry,
		adapters: deps.Adapters,
		access:   deps.Access,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		audit:    deps.Audit,
		statuses: deps.Statuses,
		ids:      deps.IDs,
		clock:    deps.Clock,
		opts:     opts,
		logger:   deps.Logger.With().Str("component", "federation").Logger(),
	}
}

func (s *Service) meta(ctx context.Context, archiveID string) *result.Metadata {
	return result.NewMetadata(ctx, s.clock.Now(), archiveID)
}

// record writes an audit entry. Audit failures are logged, never returned.
func (s *Service) record(ctx context.Context, entry models.AuditLog) {
	if s.audit == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	if err := s.audit.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("Failed to write audit log")
	}
}
