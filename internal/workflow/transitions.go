package workflow

import (
	"errors"
	"fmt"

	"github.com/otcheredev/imaging-gateway/internal/models"
)

// ErrInvalidTransition is returned for a status change the lifecycle forbids
var ErrInvalidTransition = errors.New("invalid status transition")

// orderTransitions defines valid status transitions for imaging orders.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusOrdered:    {models.OrderStatusInProgress, models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusInProgress: {models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusCompleted:  {},
	models.OrderStatusCancelled:  {},
}

// reportTransitions defines valid status transitions for imaging reports.
var reportTransitions = map[models.ReportStatus][]models.ReportStatus{
	models.ReportStatusPreliminary: {models.ReportStatusFinal, models.ReportStatusCancelled},
	models.ReportStatusFinal:       {models.ReportStatusCorrected, models.ReportStatusAmended, models.ReportStatusCancelled},
	models.ReportStatusCorrected:   {models.ReportStatusCorrected, models.ReportStatusAmended, models.ReportStatusCancelled},
	models.ReportStatusAmended:     {models.ReportStatusCorrected, models.ReportStatusAmended, models.ReportStatusCancelled},
	models.ReportStatusCancelled:   {},
}

// ValidateOrderTransition checks an order status change. Staying in the
// same status is always allowed.
func ValidateOrderTransition(from, to models.OrderStatus) error {
	return validate(orderTransitions, from, to)
}

// ValidateReportTransition checks a report status change. Staying in the
// same status is always allowed.
func ValidateReportTransition(from, to models.ReportStatus) error {
	return validate(reportTransitions, from, to)
}

func validate[S ~string](transitions map[S][]S, from, to S) error {
	if _, ok := transitions[to]; !ok {
		return fmt.Errorf("unknown status %q: %w", to, ErrInvalidTransition)
	}
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q: %w", from, ErrInvalidTransition)
	}
	if from == to {
		return nil
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}

// StatusFor derives the workflow status. The rules apply top to bottom and
// the first match wins:
//  1. any order in-progress: active
//  2. any report preliminary: pending-review
//  3. at least one order and all of them completed: completed
//  4. otherwise active
func StatusFor(orders []models.ImagingOrder, reports []models.ImagingReport) models.WorkflowStatus {
	for _, o := range orders {
		if o.Status == models.OrderStatusInProgress {
			return models.WorkflowActive
		}
	}

	for _, r := range reports {
		if r.Status == models.ReportStatusPreliminary {
			return models.WorkflowPendingReview
		}
	}

	if len(orders) > 0 {
		allCompleted := true
		for _, o := range orders {
			if o.Status != models.OrderStatusCompleted {
				allCompleted = false
				break
			}
		}
		if allCompleted {
			return models.WorkflowCompleted
		}
	}

	return models.WorkflowActive
}
