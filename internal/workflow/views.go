package workflow

import (
	"context"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// GetPatientAccessibleStudies returns the studies the patient currently has
// valid grants for. A study that cannot be fetched is skipped and the result
// is marked partial.
func (s *Service) GetPatientAccessibleStudies(ctx context.Context, patientID string) result.Result[[]models.Study] {
	grants, err := s.ledger.ValidRecordsFor(ctx, patientID)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID).Msg("Failed to load access grants")
		return result.Fail[[]models.Study](result.CodeWorkflowRetrievalFailed, err.Error(), nil, s.meta(ctx))
	}

	seen := make(map[string]struct{}, len(grants))
	studies := make([]models.Study, 0, len(grants))
	skipped := 0
	for _, g := range grants {
		if _, dup := seen[g.StudyInstanceUID]; dup {
			continue
		}
		seen[g.StudyInstanceUID] = struct{}{}

		res := s.studies.GetStudyDetails(ctx, g.StudyInstanceUID)
		if !res.Success {
			skipped++
			s.logger.Warn().
				Str("patient_id", patientID).
				Str("study_uid", g.StudyInstanceUID).
				Str("code", string(res.ErrorCode())).
				Msg("Skipping study that could not be fetched")
			continue
		}
		studies = append(studies, *res.Data)
	}

	meta := s.meta(ctx)
	meta.Partial = skipped > 0
	return result.OK(studies, meta)
}

// GetProviderWorkflow gathers a provider's orders for a patient with their
// studies and reports and derives the workflow status
func (s *Service) GetProviderWorkflow(ctx context.Context, providerID, patientID string) result.Result[*models.ProviderWorkflow] {
	fail := func(err error, details interface{}) result.Result[*models.ProviderWorkflow] {
		s.logger.Error().Err(err).Str("provider_id", providerID).Str("patient_id", patientID).Msg("Failed to build provider workflow")
		return result.Fail[*models.ProviderWorkflow](result.CodeWorkflowRetrievalFailed, err.Error(), details, s.meta(ctx))
	}

	orders, err := s.store.ListOrdersByProviderAndPatient(ctx, providerID, patientID)
	if err != nil {
		return fail(err, nil)
	}
	if orders == nil {
		orders = []models.ImagingOrder{}
	}

	workflow := &models.ProviderWorkflow{
		ProviderID: providerID,
		PatientID:  patientID,
		Orders:     orders,
		Studies:    []models.Study{},
		Reports:    []models.ImagingReport{},
	}

	// a report may be linked by order id alone, so reports are loaded first
	// and their studies count as bound too
	orderIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}
	reports, err := s.store.ListReportsForOrders(ctx, orderIDs, studyUIDs(orders, nil))
	if err != nil {
		return fail(err, nil)
	}
	if reports != nil {
		workflow.Reports = reports
	}

	uids := studyUIDs(orders, workflow.Reports)
	if len(uids) > 0 {
		search := s.studies.SearchStudies(ctx, models.QueryParams{PatientID: patientID, Limit: workflowStudyLimit})
		if !search.Success {
			return fail(search.Error, search.Error)
		}
		wanted := make(map[string]struct{}, len(uids))
		for _, uid := range uids {
			wanted[uid] = struct{}{}
		}
		for _, st := range search.Data.Studies {
			if _, ok := wanted[st.StudyInstanceUID]; ok {
				workflow.Studies = append(workflow.Studies, st)
			}
		}
	}

	workflow.Status = StatusFor(workflow.Orders, workflow.Reports)
	return result.OK(workflow, s.meta(ctx))
}

// studyUIDs returns the distinct study UIDs the orders and reports are bound
// to, in order of first appearance
func studyUIDs(orders []models.ImagingOrder, reports []models.ImagingReport) []string {
	seen := make(map[string]struct{}, len(orders)+len(reports))
	var uids []string
	add := func(uid string) {
		if uid == "" {
			return
		}
		if _, dup := seen[uid]; dup {
			return
		}
		seen[uid] = struct{}{}
		uids = append(uids, uid)
	}
	for _, o := range orders {
		add(o.StudyInstanceUID)
	}
	for _, r := range reports {
		add(r.StudyInstanceUID)
	}
	return uids
}
