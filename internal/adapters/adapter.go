package adapters

import (
	"context"

	"github.com/otcheredev/imaging-gateway/internal/models"
)

// ArchiveAdapter defines the interface that all archive adapters must implement
type ArchiveAdapter interface {
	// Query operations
	FindStudies(ctx context.Context, params models.QueryParams) ([]models.Study, error)
	FindSeries(ctx context.Context, studyUID string) ([]models.Series, error)
	FindInstances(ctx context.Context, studyUID, seriesUID string) ([]models.Instance, error)

	// Connection management
	TestConnection(ctx context.Context) (*models.ConnectionStatus, error)
	Close() error

	// Adapter info
	Type() models.ArchiveType
	Capabilities() []string
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	archive models.ArchiveServer
}

func (b *BaseAdapter) Type() models.ArchiveType {
	return b.archive.Type
}

func (b *BaseAdapter) Archive() models.ArchiveServer {
	return b.archive
}

// tagStudies stamps the supplying archive on each study
func (b *BaseAdapter) tagStudies(studies []models.Study) []models.Study {
	for i := range studies {
		studies[i].ArchiveID = b.archive.ID
	}
	return studies
}
