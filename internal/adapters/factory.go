package adapters

import (
	"fmt"
	"sync"

	"github.com/otcheredev/imaging-gateway/internal/models"
)

// BuildFunc creates an adapter for an archive
type BuildFunc func(archive models.ArchiveServer) (ArchiveAdapter, error)

type cachedAdapter struct {
	adapter     ArchiveAdapter
	fingerprint string
}

// AdapterFactory manages archive adapter instances keyed by archive id
type AdapterFactory struct {
	mu       sync.RWMutex
	adapters map[string]cachedAdapter
	build    BuildFunc
}

// NewAdapterFactory creates a new adapter factory. A nil build uses
// NewAdapter with the default DICOMweb options.
func NewAdapterFactory(build BuildFunc) *AdapterFactory {
	if build == nil {
		build = func(archive models.ArchiveServer) (ArchiveAdapter, error) {
			return NewAdapter(archive, DefaultDICOMWebOptions)
		}
	}
	return &AdapterFactory{
		adapters: make(map[string]cachedAdapter),
		build:    build,
	}
}

// NewAdapter builds the adapter matching the archive type
func NewAdapter(archive models.ArchiveServer, opts DICOMWebOptions) (ArchiveAdapter, error) {
	switch archive.Type {
	case models.ArchiveTypeDICOMWeb, models.ArchiveTypeOrthanc:
		// Orthanc serves DICOMweb under its plugin prefix
		return NewDICOMWebAdapter(archive, opts)
	case models.ArchiveTypeDIMSE:
		return NewDIMSEAdapter(archive)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archive.Type)
	}
}

// GetAdapter gets or creates an adapter for an archive. A cached adapter is
// rebuilt when the archive's connection settings changed.
func (f *AdapterFactory) GetAdapter(archive models.ArchiveServer) (ArchiveAdapter, error) {
	fp := fingerprint(archive)

	f.mu.RLock()
	cached, exists := f.adapters[archive.ID]
	f.mu.RUnlock()

	if exists && cached.fingerprint == fp {
		return cached.adapter, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if cached, exists := f.adapters[archive.ID]; exists {
		if cached.fingerprint == fp {
			return cached.adapter, nil
		}
		cached.adapter.Close()
		delete(f.adapters, archive.ID)
	}

	adapter, err := f.build(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	f.adapters[archive.ID] = cachedAdapter{adapter: adapter, fingerprint: fp}
	return adapter, nil
}

// RemoveAdapter removes the adapter for an archive
func (f *AdapterFactory) RemoveAdapter(archiveID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cached, exists := f.adapters[archiveID]
	if !exists {
		return nil
	}

	delete(f.adapters, archiveID)
	if err := cached.adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter: %w", err)
	}
	return nil
}

// CloseAll closes all adapters
func (f *AdapterFactory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errors []error
	for archiveID, cached := range f.adapters {
		if err := cached.adapter.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close adapter for archive %s: %w", archiveID, err))
		}
		delete(f.adapters, archiveID)
	}

	if len(errors) > 0 {
		return fmt.Errorf("encountered %d errors while closing adapters", len(errors))
	}

	return nil
}

func fingerprint(a models.ArchiveServer) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s|%s|%s|%s|%s",
		a.Type, a.Scheme, a.Host, a.Port, a.PathPrefix, a.AETitle, a.Username, a.Password, a.APIKey)
}
