package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"gorm.io/gorm"
)

// AccessStore persists patient consent grants
type AccessStore interface {
	Create(ctx context.Context, grant *models.PatientImagingAccess) error
	GetByID(ctx context.Context, id string) (*models.PatientImagingAccess, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.PatientImagingAccess, error)
	ListByPatientAndStudy(ctx context.Context, patientID, studyUID string) ([]models.PatientImagingAccess, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// AccessRepository is the GORM implementation of AccessStore
type AccessRepository struct {
	db *gorm.DB
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

var _ AccessStore = (*AccessRepository)(nil)

func (r *AccessRepository) Create(ctx context.Context, grant *models.PatientImagingAccess) error {
	if err := r.db.WithContext(ctx).Create(grant).Error; err != nil {
		return fmt.Errorf("failed to create access grant: %w", err)
	}
	return nil
}

func (r *AccessRepository) GetByID(ctx context.Context, id string) (*models.PatientImagingAccess, error) {
	var grant models.PatientImagingAccess
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&grant).Error; err != nil {
		return nil, fmt.Errorf("failed to get access grant %s: %w", id, notFound(err))
	}
	return &grant, nil
}

func (r *AccessRepository) ListByPatient(ctx context.Context, patientID string) ([]models.PatientImagingAccess, error) {
	var grants []models.PatientImagingAccess
	if err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("consent_date ASC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	return grants, nil
}

func (r *AccessRepository) ListByPatientAndStudy(ctx context.Context, patientID, studyUID string) ([]models.PatientImagingAccess, error) {
	var grants []models.PatientImagingAccess
	if err := r.db.WithContext(ctx).
		Where("patient_id = ? AND study_instance_uid = ?", patientID, studyUID).
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	return grants, nil
}

// Revoke withdraws consent on a grant
func (r *AccessRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PatientImagingAccess{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"consent":    false,
			"revoked_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to revoke access grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to revoke access grant %s: %w", id, ErrNotFound)
	}
	return nil
}
