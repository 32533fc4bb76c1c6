// Package consent records and evaluates time-boxed patient imaging grants.
package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
	"github.com/otcheredev/imaging-gateway/pkg/idgen"
	"github.com/rs/zerolog"
)

// DefaultTTLDays applies when a grant is requested without a positive ttl
const DefaultTTLDays = 30

// Ledger is the consent and access ledger
type Ledger struct {
	store      repository.AccessStore
	ids        idgen.Generator
	clock      clock.Clock
	defaultTTL int
	logger     zerolog.Logger
}

// NewLedger creates a ledger. defaultTTLDays <= 0 falls back to DefaultTTLDays.
func NewLedger(store repository.AccessStore, ids idgen.Generator, clk clock.Clock, defaultTTLDays int, logger zerolog.Logger) *Ledger {
	if defaultTTLDays <= 0 {
		defaultTTLDays = DefaultTTLDays
	}
	return &Ledger{
		store:      store,
		ids:        ids,
		clock:      clk,
		defaultTTL: defaultTTLDays,
		logger:     logger.With().Str("component", "consent").Logger(),
	}
}

// Grant records consent for one study
func (l *Ledger) Grant(ctx context.Context, patientID, studyUID string, accessType models.AccessType, grantingProviderID string, ttlDays int) (*models.PatientImagingAccess, error) {
	if accessType == "" {
		accessType = models.AccessView
	}
	if !accessType.Valid() {
		return nil, fmt.Errorf("unknown access type %q", accessType)
	}
	if ttlDays <= 0 {
		ttlDays = l.defaultTTL
	}

	now := l.clock.Now()
	expires := now.AddDate(0, 0, ttlDays)
	grant := &models.PatientImagingAccess{
		ID:                 l.ids.NewID(),
		PatientID:          patientID,
		StudyInstanceUID:   studyUID,
		AccessType:         accessType,
		Consent:            true,
		ConsentDate:        now,
		ExpiresAt:          &expires,
		GrantingProviderID: grantingProviderID,
	}

	if err := l.store.Create(ctx, grant); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("grant_id", grant.ID).
		Str("patient_id", patientID).
		Str("study_uid", studyUID).
		Str("access_type", string(accessType)).
		Time("expires_at", expires).
		Msg("Access granted")

	return grant, nil
}

// IsValid reports whether a grant is in force at now
func IsValid(grant models.PatientImagingAccess, now time.Time) bool {
	if !grant.Consent || grant.RevokedAt != nil {
		return false
	}
	return grant.ExpiresAt == nil || grant.ExpiresAt.After(now)
}

// IsValid evaluates a grant against the ledger's clock
func (l *Ledger) IsValid(grant models.PatientImagingAccess) bool {
	return IsValid(grant, l.clock.Now())
}

// RecordsFor returns every grant a patient has made, valid or not
func (l *Ledger) RecordsFor(ctx context.Context, patientID string) ([]models.PatientImagingAccess, error) {
	return l.store.ListByPatient(ctx, patientID)
}

// ValidRecordsFor returns only the grants currently in force
func (l *Ledger) ValidRecordsFor(ctx context.Context, patientID string) ([]models.PatientImagingAccess, error) {
	grants, err := l.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	valid := make([]models.PatientImagingAccess, 0, len(grants))
	for _, g := range grants {
		if IsValid(g, now) {
			valid = append(valid, g)
		}
	}
	return valid, nil
}

// HasValidAccess reports whether any grant in force covers accessType
func (l *Ledger) HasValidAccess(ctx context.Context, patientID, studyUID string, accessType models.AccessType) (bool, error) {
	grants, err := l.store.ListByPatientAndStudy(ctx, patientID, studyUID)
	if err != nil {
		return false, err
	}

	now := l.clock.Now()
	for _, g := range grants {
		if IsValid(g, now) && g.AccessType.Covers(accessType) {
			return true, nil
		}
	}
	return false, nil
}

// Revoke withdraws a grant
func (l *Ledger) Revoke(ctx context.Context, grantID string) error {
	if err := l.store.Revoke(ctx, grantID, l.clock.Now()); err != nil {
		return err
	}
	l.logger.Info().Str("grant_id", grantID).Msg("Access revoked")
	return nil
}
