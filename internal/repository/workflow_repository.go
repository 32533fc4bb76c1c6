package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowStore persists imaging orders and reports
type WorkflowStore interface {
	CreateOrder(ctx context.Context, order *models.ImagingOrder) error
	GetOrder(ctx context.Context, id string) (*models.ImagingOrder, error)
	// GetOrderForUpdate locks the order row until the surrounding transaction ends
	GetOrderForUpdate(ctx context.Context, id string) (*models.ImagingOrder, error)
	UpdateOrder(ctx context.Context, order *models.ImagingOrder) error
	// FindOpenOrderByStudy returns the oldest order for the study that is not terminal
	FindOpenOrderByStudy(ctx context.Context, studyUID string) (*models.ImagingOrder, error)
	ListOrdersByProviderAndPatient(ctx context.Context, providerID, patientID string) ([]models.ImagingOrder, error)

	CreateReport(ctx context.Context, report *models.ImagingReport) error
	GetReport(ctx context.Context, id string) (*models.ImagingReport, error)
	GetReportForUpdate(ctx context.Context, id string) (*models.ImagingReport, error)
	UpdateReport(ctx context.Context, report *models.ImagingReport) error
	// ListReportsForOrders returns reports linked to any of the orders or
	// filed against any of the studies, newest first
	ListReportsForOrders(ctx context.Context, orderIDs, studyUIDs []string) ([]models.ImagingReport, error)

	// Transaction runs fn against a store bound to one database transaction
	Transaction(ctx context.Context, fn func(tx WorkflowStore) error) error
}

// WorkflowRepository is the GORM implementation of WorkflowStore
type WorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

var _ WorkflowStore = (*WorkflowRepository)(nil)

func (r *WorkflowRepository) CreateOrder(ctx context.Context, order *models.ImagingOrder) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetOrder(ctx context.Context, id string) (*models.ImagingOrder, error) {
	return r.getOrder(r.db.WithContext(ctx), id)
}

func (r *WorkflowRepository) GetOrderForUpdate(ctx context.Context, id string) (*models.ImagingOrder, error) {
	return r.getOrder(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *WorkflowRepository) getOrder(db *gorm.DB, id string) (*models.ImagingOrder, error) {
	var order models.ImagingOrder
	if err := db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, notFound(err))
	}
	return &order, nil
}

func (r *WorkflowRepository) UpdateOrder(ctx context.Context, order *models.ImagingOrder) error {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) FindOpenOrderByStudy(ctx context.Context, studyUID string) (*models.ImagingOrder, error) {
	var order models.ImagingOrder
	err := r.db.WithContext(ctx).
		Where("study_instance_uid = ? AND status IN ?", studyUID,
			[]models.OrderStatus{models.OrderStatusOrdered, models.OrderStatusInProgress}).
		Order("order_date ASC").
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find open order for study %s: %w", studyUID, notFound(err))
	}
	return &order, nil
}

func (r *WorkflowRepository) ListOrdersByProviderAndPatient(ctx context.Context, providerID, patientID string) ([]models.ImagingOrder, error) {
	var orders []models.ImagingOrder
	if err := r.db.WithContext(ctx).
		Where("ordering_provider_id = ? AND patient_id = ?", providerID, patientID).
		Order("order_date DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *WorkflowRepository) CreateReport(ctx context.Context, report *models.ImagingReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetReport(ctx context.Context, id string) (*models.ImagingReport, error) {
	return r.getReport(r.db.WithContext(ctx), id)
}

func (r *WorkflowRepository) GetReportForUpdate(ctx context.Context, id string) (*models.ImagingReport, error) {
	return r.getReport(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *WorkflowRepository) getReport(db *gorm.DB, id string) (*models.ImagingReport, error) {
	var report models.ImagingReport
	if err := db.Where("id = ?", id).First(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, notFound(err))
	}
	return &report, nil
}

func (r *WorkflowRepository) UpdateReport(ctx context.Context, report *models.ImagingReport) error {
	if err := r.db.WithContext(ctx).Save(report).Error; err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) ListReportsForOrders(ctx context.Context, orderIDs, studyUIDs []string) ([]models.ImagingReport, error) {
	q := r.db.WithContext(ctx)
	switch {
	case len(orderIDs) > 0 && len(studyUIDs) > 0:
		q = q.Where("order_id IN ?", orderIDs).Or("study_instance_uid IN ?", studyUIDs)
	case len(orderIDs) > 0:
		q = q.Where("order_id IN ?", orderIDs)
	case len(studyUIDs) > 0:
		q = q.Where("study_instance_uid IN ?", studyUIDs)
	default:
		return nil, nil
	}

	var reports []models.ImagingReport
	if err := q.Order("report_date DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func (r *WorkflowRepository) Transaction(ctx context.Context, fn func(tx WorkflowStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&WorkflowRepository{db: tx})
	})
}
