package federation

import (
	"context"
	"errors"

	"github.com/otcheredev/imaging-gateway/internal/cache"
	"github.com/otcheredev/imaging-gateway/internal/metrics"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// CreatePatientSession mints a viewing session when the patient's consent
// covers accessType. Any doubt about consent denies.
func (s *Service) CreatePatientSession(ctx context.Context, patientID, studyUID string, accessType models.AccessType, viewer models.ViewerKind) result.Result[*models.ImagingSession] {
	if err := ctx.Err(); err != nil {
		return result.Fail[*models.ImagingSession](result.CodeSessionCreationFailed, err.Error(), nil, s.meta(ctx, ""))
	}
	if accessType == "" {
		accessType = models.AccessView
	}
	if viewer == "" {
		viewer = models.ViewerWeb
	}

	allowed, err := s.access.HasValidAccess(ctx, patientID, studyUID, accessType)
	if err != nil || !allowed {
		entry := models.AuditLog{
			ActorID:      patientID,
			PatientID:    patientID,
			Action:       models.AuditAccessDenied,
			ResourceType: "study",
			ResourceUID:  studyUID,
			Status:       "failure",
		}
		log := s.logger.Warn().Str("patient_id", patientID).Str("study_uid", studyUID)
		if err != nil {
			entry.ErrorMessage = err.Error()
			log = log.Err(err)
		}
		log.Msg("Session denied")
		metrics.AccessDenied.Inc()
		s.record(ctx, entry)

		return result.Fail[*models.ImagingSession](
			result.CodeAccessDenied,
			"patient has not granted access to this study",
			map[string]string{"patientId": patientID, "studyInstanceUid": studyUID},
			s.meta(ctx, ""),
		)
	}

	now := s.clock.Now()
	session := &models.ImagingSession{
		ID:               s.ids.NewID(),
		PatientID:        patientID,
		StudyInstanceUID: studyUID,
		AccessType:       accessType,
		Viewer:           viewer,
		StartedAt:        now,
		ExpiresAt:        now.Add(s.opts.SessionTTL),
		Actions:          []models.SessionAction{},
	}

	if err := ctx.Err(); err != nil {
		return result.Fail[*models.ImagingSession](result.CodeSessionCreationFailed, err.Error(), nil, s.meta(ctx, ""))
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to store session")
		return result.Fail[*models.ImagingSession](result.CodeSessionCreationFailed, err.Error(), nil, s.meta(ctx, ""))
	}

	metrics.SessionsCreated.Inc()
	s.record(ctx, models.AuditLog{
		ActorID:      patientID,
		PatientID:    patientID,
		Action:       models.AuditSessionCreated,
		ResourceType: "session",
		ResourceUID:  session.ID,
		Status:       "success",
	})

	return result.OK(session, s.meta(ctx, ""))
}

// GetSession returns a live session
func (s *Service) GetSession(ctx context.Context, sessionID string) result.Result[*models.ImagingSession] {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return s.sessionFailure(ctx, sessionID, err)
	}
	return result.OK(session, s.meta(ctx, ""))
}

// LogSessionAction appends to the session's action log
func (s *Service) LogSessionAction(ctx context.Context, sessionID string, action models.SessionAction) result.Result[*models.ImagingSession] {
	session, err := s.sessions.AppendAction(ctx, sessionID, action)
	if err != nil {
		return s.sessionFailure(ctx, sessionID, err)
	}
	return result.OK(session, s.meta(ctx, ""))
}

// sessionFailure reports unreadable sessions as not found
func (s *Service) sessionFailure(ctx context.Context, sessionID string, err error) result.Result[*models.ImagingSession] {
	if !errors.Is(err, cache.ErrSessionNotFound) {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Session store failure")
	}
	return result.Fail[*models.ImagingSession](
		result.CodeSessionNotFound,
		err.Error(),
		map[string]string{"sessionId": sessionID},
		s.meta(ctx, ""),
	)
}
