// Package workflow ties imaging orders to the reports that close them and
// exposes patient and provider views over orders, studies and consent.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
	"github.com/otcheredev/imaging-gateway/pkg/idgen"
	"github.com/rs/zerolog"
)

// workflowStudyLimit bounds the patient study search behind a provider workflow
const workflowStudyLimit = 500

// StudyProvider fetches study data across archives
type StudyProvider interface {
	SearchStudies(ctx context.Context, criteria models.QueryParams) result.Result[*models.ImagingSearchResult]
	GetStudyDetails(ctx context.Context, studyUID string) result.Result[*models.Study]
}

// AccessLedger records and evaluates consent grants
type AccessLedger interface {
	Grant(ctx context.Context, patientID, studyUID string, accessType models.AccessType, grantingProviderID string, ttlDays int) (*models.PatientImagingAccess, error)
	ValidRecordsFor(ctx context.Context, patientID string) ([]models.PatientImagingAccess, error)
	Revoke(ctx context.Context, grantID string) error
}

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Service is the imaging workflow service
type Service struct {
	store   repository.WorkflowStore
	studies StudyProvider
	ledger  AccessLedger
	audit   AuditRecorder
	ids     idgen.Generator
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewService creates a workflow service. audit may be nil.
func NewService(store repository.WorkflowStore, studies StudyProvider, ledger AccessLedger, audit AuditRecorder, ids idgen.Generator, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		studies: studies,
		ledger:  ledger,
		audit:   audit,
		ids:     ids,
		clock:   clk,
		logger:  logger.With().Str("component", "workflow").Logger(),
	}
}

func (s *Service) meta(ctx context.Context) *result.Metadata {
	return result.NewMetadata(ctx, s.clock.Now(), "")
}

func (s *Service) record(ctx context.Context, entry models.AuditLog) {
	if s.audit == nil {
		return
	}
	entry.CreatedAt = s.clock.Now()
	if err := s.audit.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("Failed to write audit log")
	}
}

func missing(fields map[string]string) error {
	var names []string
	for _, name := range []string{"patientId", "orderingProviderId", "modality", "studyInstanceUid", "radiologistId"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("missing required fields: %s", strings.Join(names, ", "))
}

// CreateOrder places a new imaging order in status ordered
func (s *Service) CreateOrder(ctx context.Context, req models.OrderRequest) result.Result[*models.ImagingOrder] {
	if err := missing(map[string]string{
		"patientId":          req.PatientID,
		"orderingProviderId": req.OrderingProviderID,
		"modality":           req.Modality,
	}); err != nil {
		return result.Fail[*models.ImagingOrder](result.CodeInvalidRequest, err.Error(), nil, s.meta(ctx))
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyRoutine
	}
	if urgency != models.UrgencyRoutine && urgency != models.UrgencyUrgent {
		return result.Fail[*models.ImagingOrder](result.CodeInvalidRequest, fmt.Sprintf("unknown urgency %q", urgency), nil, s.meta(ctx))
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = s.clock.Now()
	}

	order := &models.ImagingOrder{
		ID:                 s.ids.NewID(),
		PatientID:          req.PatientID,
		OrderingProviderID: req.OrderingProviderID,
		StudyInstanceUID:   req.StudyInstanceUID,
		OrderDate:          orderDate,
		Modality:           req.Modality,
		BodyPart:           req.BodyPart,
		ClinicalIndication: req.ClinicalIndication,
		Urgency:            urgency,
		Status:             models.OrderStatusOrdered,
		Notes:              req.Notes,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("patient_id", req.PatientID).Msg("Failed to create order")
		return result.Fail[*models.ImagingOrder](result.CodeOrderCreationFailed, err.Error(), nil, s.meta(ctx))
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("patient_id", order.PatientID).
		Str("modality", order.Modality).
		Msg("Order created")
	return result.OK(order, s.meta(ctx))
}

// GetOrder loads an order
func (s *Service) GetOrder(ctx context.Context, orderID string) result.Result[*models.ImagingOrder] {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result.Fail[*models.ImagingOrder](result.CodeOrderNotFound, err.Error(), map[string]string{"orderId": orderID}, s.meta(ctx))
		}
		return result.Fail[*models.ImagingOrder](result.CodeWorkflowRetrievalFailed, err.Error(), nil, s.meta(ctx))
	}
	return result.OK(order, s.meta(ctx))
}

// UpdateOrderStatus moves an order along its lifecycle. Non-empty notes
// replace the order's notes.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, notes string) result.Result[*models.ImagingOrder] {
	var updated *models.ImagingOrder
	err := s.store.Transaction(ctx, func(tx repository.WorkflowStore) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ValidateOrderTransition(order.Status, status); err != nil {
			return err
		}

		changed := order.Status != status
		order.Status = status
		if notes != "" && notes != order.Notes {
			order.Notes = notes
			changed = true
		}
		if changed {
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info().Str("order_id", orderID).Str("status", string(status)).Msg("Order status updated")
		return result.OK(updated, s.meta(ctx))
	case errors.Is(err, repository.ErrNotFound):
		return result.Fail[*models.ImagingOrder](result.CodeOrderNotFound, err.Error(), map[string]string{"orderId": orderID}, s.meta(ctx))
	default:
		s.logger.Warn().Err(err).Str("order_id", orderID).Str("status", string(status)).Msg("Order status update rejected")
		return result.Fail[*models.ImagingOrder](result.CodeOrderUpdateFailed, err.Error(), map[string]string{"orderId": orderID}, s.meta(ctx))
	}
}
