package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"gorm.io/gorm"
)

// ArchiveRepository handles archive server database operations
type ArchiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create registers a new archive server
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.ArchiveServer) error {
	if err := r.db.WithContext(ctx).Create(archive).Error; err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

// GetByID retrieves an archive server by ID
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.ArchiveServer, error) {
	var archive models.ArchiveServer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&archive).Error; err != nil {
		return nil, fmt.Errorf("failed to get archive %s: %w", id, notFound(err))
	}
	return &archive, nil
}

// List retrieves all archives, active or not, in registration order
func (r *ArchiveRepository) List(ctx context.Context) ([]models.ArchiveServer, error) {
	var archives []models.ArchiveServer
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	return archives, nil
}

// PrimaryID returns the id of the archive flagged primary, or ""
func (r *ArchiveRepository) PrimaryID(ctx context.Context) (string, error) {
	var archive models.ArchiveServer
	err := r.db.WithContext(ctx).
		Select("id").
		Where("is_primary = ?", true).
		First(&archive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get primary archive: %w", err)
	}
	return archive.ID, nil
}

// Update updates an archive server
func (r *ArchiveRepository) Update(ctx context.Context, archive *models.ArchiveServer) error {
	if err := r.db.WithContext(ctx).Save(archive).Error; err != nil {
		return fmt.Errorf("failed to update archive: %w", err)
	}
	return nil
}

// Delete soft deletes an archive server
func (r *ArchiveRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ArchiveServer{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete archive: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete archive %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetPrimary flags one archive as primary and clears the flag on the rest
func (r *ArchiveRepository) SetPrimary(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ArchiveServer{}).
			Where("id = ?", id).
			Update("is_primary", true)
		if res.Error != nil {
			return fmt.Errorf("failed to set primary: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to set primary archive %s: %w", id, ErrNotFound)
		}

		if err := tx.Model(&models.ArchiveServer{}).
			Where("id <> ? AND is_primary = ?", id, true).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("failed to unset primary flags: %w", err)
		}
		return nil
	})
}

// UpdateConnectionStatus records the outcome of a connection test
func (r *ArchiveRepository) UpdateConnectionStatus(ctx context.Context, id string, status *models.ConnectionStatus) error {
	updates := map[string]interface{}{
		"last_connection_test":   status.LastChecked,
		"last_connection_status": status.IsConnected,
		"last_error":             status.ErrorMessage,
	}

	if err := r.db.WithContext(ctx).
		Model(&models.ArchiveServer{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	return nil
}
