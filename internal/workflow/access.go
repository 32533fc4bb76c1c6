package workflow

import (
	"context"
	"errors"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// GrantPatientAccess records a patient's consent for one study
func (s *Service) GrantPatientAccess(ctx context.Context, req models.AccessGrantRequest) result.Result[*models.PatientImagingAccess] {
	if err := missing(map[string]string{
		"patientId":        req.PatientID,
		"studyInstanceUid": req.StudyInstanceUID,
	}); err != nil {
		return result.Fail[*models.PatientImagingAccess](result.CodeInvalidRequest, err.Error(), nil, s.meta(ctx))
	}

	grant, err := s.ledger.Grant(ctx, req.PatientID, req.StudyInstanceUID, req.AccessType, req.GrantingProviderID, req.TTLDays)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", req.PatientID).Msg("Failed to grant access")
		return result.Fail[*models.PatientImagingAccess](result.CodeAccessGrantFailed, err.Error(), nil, s.meta(ctx))
	}

	s.record(ctx, models.AuditLog{
		ActorID:      req.GrantingProviderID,
		PatientID:    req.PatientID,
		Action:       models.AuditAccessGranted,
		ResourceType: "study",
		ResourceUID:  req.StudyInstanceUID,
		Status:       "success",
	})
	return result.OK(grant, s.meta(ctx))
}

// RevokePatientAccess withdraws a grant and returns its id
func (s *Service) RevokePatientAccess(ctx context.Context, grantID string) result.Result[string] {
	if err := s.ledger.Revoke(ctx, grantID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error().Err(err).Str("grant_id", grantID).Msg("Failed to revoke access")
		}
		return result.Fail[string](result.CodeAccessRevokeFailed, err.Error(), map[string]string{"grantId": grantID}, s.meta(ctx))
	}

	s.record(ctx, models.AuditLog{
		Action:       models.AuditAccessRevoked,
		ResourceType: "grant",
		ResourceUID:  grantID,
		Status:       "success",
	})
	return result.OK(grantID, s.meta(ctx))
}
