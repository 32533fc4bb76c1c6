package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// CreateReport files a report. A report filed as final completes its order
// in the same transaction.
func (s *Service) CreateReport(ctx context.Context, req models.ReportRequest) result.Result[*models.ImagingReport] {
	if err := missing(map[string]string{
		"studyInstanceUid": req.StudyInstanceUID,
		"patientId":        req.PatientID,
		"radiologistId":    req.RadiologistID,
	}); err != nil {
		return result.Fail[*models.ImagingReport](result.CodeInvalidRequest, err.Error(), nil, s.meta(ctx))
	}

	status := req.Status
	if status == "" {
		status = models.ReportStatusPreliminary
	}
	if status != models.ReportStatusPreliminary && status != models.ReportStatusFinal {
		return result.Fail[*models.ImagingReport](result.CodeInvalidRequest,
			fmt.Sprintf("a new report must be preliminary or final, got %q", status), nil, s.meta(ctx))
	}

	now := s.clock.Now()
	reportDate := req.ReportDate
	if reportDate.IsZero() {
		reportDate = now
	}

	report := &models.ImagingReport{
		ID:               s.ids.NewID(),
		StudyInstanceUID: req.StudyInstanceUID,
		OrderID:          req.OrderID,
		PatientID:        req.PatientID,
		RadiologistID:    req.RadiologistID,
		ReportDate:       reportDate,
		Findings:         req.Findings,
		Impression:       req.Impression,
		Abnormal:         req.Abnormal,
		Status:           status,
	}

	err := s.store.Transaction(ctx, func(tx repository.WorkflowStore) error {
		switch {
		case status == models.ReportStatusFinal:
			if err := s.finalize(ctx, tx, report); err != nil {
				return err
			}
		case report.OrderID != "":
			if err := s.linkOrder(ctx, tx, report); err != nil {
				return err
			}
		}
		return tx.CreateReport(ctx, report)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("study_uid", req.StudyInstanceUID).Msg("Failed to create report")
		return result.Fail[*models.ImagingReport](result.CodeReportCreationFailed, err.Error(), nil, s.meta(ctx))
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Str("study_uid", report.StudyInstanceUID).
		Str("status", string(report.Status)).
		Msg("Report created")
	if report.FinalizedAt != nil {
		s.recordFinal(ctx, report)
	}
	return result.OK(report, s.meta(ctx))
}

// GetReport loads one report
func (s *Service) GetReport(ctx context.Context, reportID string) result.Result[*models.ImagingReport] {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result.Fail[*models.ImagingReport](result.CodeReportNotFound, err.Error(), map[string]string{"reportId": reportID}, s.meta(ctx))
		}
		return result.Fail[*models.ImagingReport](result.CodeWorkflowRetrievalFailed, err.Error(), nil, s.meta(ctx))
	}
	return result.OK(report, s.meta(ctx))
}

// UpdateReportStatus moves a report along its lifecycle. The first move to
// final completes the linked order; later ones leave it alone.
func (s *Service) UpdateReportStatus(ctx context.Context, reportID string, status models.ReportStatus) result.Result[*models.ImagingReport] {
	var (
		updated   *models.ImagingReport
		finalized bool
	)
	err := s.store.Transaction(ctx, func(tx repository.WorkflowStore) error {
		report, err := tx.GetReportForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		if err := ValidateReportTransition(report.Status, status); err != nil {
			return err
		}

		updated = report
		if report.Status == status {
			return nil
		}

		report.Status = status
		if status == models.ReportStatusFinal && report.FinalizedAt == nil {
			if err := s.finalize(ctx, tx, report); err != nil {
				return err
			}
			finalized = true
		}
		return tx.UpdateReport(ctx, report)
	})

	switch {
	case err == nil:
		if finalized {
			s.recordFinal(ctx, updated)
		}
		return result.OK(updated, s.meta(ctx))
	case errors.Is(err, repository.ErrNotFound) && updated == nil:
		return result.Fail[*models.ImagingReport](result.CodeReportNotFound, err.Error(), map[string]string{"reportId": reportID}, s.meta(ctx))
	default:
		s.logger.Warn().Err(err).Str("report_id", reportID).Str("status", string(status)).Msg("Report status update rejected")
		return result.Fail[*models.ImagingReport](result.CodeReportUpdateFailed, err.Error(), map[string]string{"reportId": reportID}, s.meta(ctx))
	}
}

// finalize stamps FinalizedAt and completes the report's order. Must run
// inside a store transaction.
func (s *Service) finalize(ctx context.Context, tx repository.WorkflowStore, report *models.ImagingReport) error {
	now := s.clock.Now()
	report.FinalizedAt = &now

	order, err := s.resolveOrder(ctx, tx, report)
	if err != nil {
		return err
	}
	if order == nil {
		s.logger.Info().Str("report_id", report.ID).Str("study_uid", report.StudyInstanceUID).Msg("Final report has no open order")
		return nil
	}
	report.OrderID = order.ID

	bound := bindStudy(order, report)
	completing := false
	switch order.Status {
	case models.OrderStatusCompleted:
	case models.OrderStatusCancelled:
		s.logger.Warn().Str("order_id", order.ID).Str("report_id", report.ID).Msg("Final report filed against cancelled order")
	default:
		order.Status = models.OrderStatusCompleted
		completing = true
	}
	if !bound && !completing {
		return nil
	}

	if err := tx.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to complete order %s: %w", order.ID, err)
	}
	if completing {
		s.logger.Info().Str("order_id", order.ID).Str("report_id", report.ID).Msg("Order completed by final report")
	}
	return nil
}

// linkOrder checks the report's explicit order exists and binds the
// report's study to it when the order has none yet
func (s *Service) linkOrder(ctx context.Context, tx repository.WorkflowStore, report *models.ImagingReport) error {
	order, err := tx.GetOrderForUpdate(ctx, report.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order for report: %w", err)
	}
	if !bindStudy(order, report) {
		return nil
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to bind study to order %s: %w", order.ID, err)
	}
	return nil
}

// bindStudy copies the report's study onto an order placed without one.
// It reports whether the order changed.
func bindStudy(order *models.ImagingOrder, report *models.ImagingReport) bool {
	if order.StudyInstanceUID != "" || report.StudyInstanceUID == "" {
		return false
	}
	order.StudyInstanceUID = report.StudyInstanceUID
	return true
}

// resolveOrder finds the order a report closes: its explicit order id, else
// the open order bound to its study. nil means there is none.
func (s *Service) resolveOrder(ctx context.Context, tx repository.WorkflowStore, report *models.ImagingReport) (*models.ImagingOrder, error) {
	if report.OrderID != "" {
		order, err := tx.GetOrderForUpdate(ctx, report.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order for report: %w", err)
		}
		return order, nil
	}

	order, err := tx.FindOpenOrderByStudy(ctx, report.StudyInstanceUID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// re-read under lock
	return tx.GetOrderForUpdate(ctx, order.ID)
}

func (s *Service) recordFinal(ctx context.Context, report *models.ImagingReport) {
	s.record(ctx, models.AuditLog{
		ActorID:      report.RadiologistID,
		PatientID:    report.PatientID,
		Action:       models.AuditReportFinal,
		ResourceType: "report",
		ResourceUID:  report.ID,
		Status:       "success",
	})
}
