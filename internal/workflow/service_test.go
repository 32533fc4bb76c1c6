package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/consent"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/repository"
	"github.com/otcheredev/imaging-gateway/internal/result"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
	"github.com/otcheredev/imaging-gateway/pkg/idgen"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Mock Repositories --

type mockStore struct {
	orders  map[string]*models.ImagingOrder
	reports map[string]*models.ImagingReport

	orderUpdates int
	failUpdate   error
}

func newMockStore() *mockStore {
	return &mockStore{
		orders:  make(map[string]*models.ImagingOrder),
		reports: make(map[string]*models.ImagingReport),
	}
}

func (m *mockStore) CreateOrder(_ context.Context, o *models.ImagingOrder) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockStore) GetOrder(_ context.Context, id string) (*models.ImagingOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, repository.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) GetOrderForUpdate(ctx context.Context, id string) (*models.ImagingOrder, error) {
	return m.GetOrder(ctx, id)
}

func (m *mockStore) UpdateOrder(_ context.Context, o *models.ImagingOrder) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	m.orderUpdates++
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockStore) FindOpenOrderByStudy(_ context.Context, studyUID string) (*models.ImagingOrder, error) {
	var open []*models.ImagingOrder
	for _, o := range m.orders {
		if o.StudyInstanceUID == studyUID && !o.Status.IsTerminal() {
			open = append(open, o)
		}
	}
	if len(open) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(open, func(i, j int) bool { return open[i].OrderDate.Before(open[j].OrderDate) })
	cp := *open[0]
	return &cp, nil
}

func (m *mockStore) ListOrdersByProviderAndPatient(_ context.Context, providerID, patientID string) ([]models.ImagingOrder, error) {
	var out []models.ImagingOrder
	for _, o := range m.orders {
		if o.OrderingProviderID == providerID && o.PatientID == patientID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateReport(_ context.Context, r *models.ImagingReport) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *mockStore) GetReport(_ context.Context, id string) (*models.ImagingReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, repository.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) GetReportForUpdate(ctx context.Context, id string) (*models.ImagingReport, error) {
	return m.GetReport(ctx, id)
}

func (m *mockStore) UpdateReport(_ context.Context, r *models.ImagingReport) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *mockStore) ListReportsForOrders(_ context.Context, orderIDs, uids []string) ([]models.ImagingReport, error) {
	byOrder := make(map[string]bool)
	for _, id := range orderIDs {
		byOrder[id] = true
	}
	byStudy := make(map[string]bool)
	for _, u := range uids {
		byStudy[u] = true
	}
	var out []models.ImagingReport
	for _, r := range m.reports {
		if (r.OrderID != "" && byOrder[r.OrderID]) || byStudy[r.StudyInstanceUID] {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Transaction restores both maps when fn fails
func (m *mockStore) Transaction(_ context.Context, fn func(tx repository.WorkflowStore) error) error {
	orders := make(map[string]*models.ImagingOrder, len(m.orders))
	for k, v := range m.orders {
		cp := *v
		orders[k] = &cp
	}
	reports := make(map[string]*models.ImagingReport, len(m.reports))
	for k, v := range m.reports {
		cp := *v
		reports[k] = &cp
	}

	if err := fn(m); err != nil {
		m.orders, m.reports = orders, reports
		return err
	}
	return nil
}

type mockAccessRepo struct {
	grants []*models.PatientImagingAccess
}

func (m *mockAccessRepo) Create(_ context.Context, g *models.PatientImagingAccess) error {
	m.grants = append(m.grants, g)
	return nil
}

func (m *mockAccessRepo) GetByID(_ context.Context, id string) (*models.PatientImagingAccess, error) {
	for _, g := range m.grants {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccessRepo) ListByPatient(_ context.Context, patientID string) ([]models.PatientImagingAccess, error) {
	var out []models.PatientImagingAccess
	for _, g := range m.grants {
		if g.PatientID == patientID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockAccessRepo) ListByPatientAndStudy(_ context.Context, patientID, studyUID string) ([]models.PatientImagingAccess, error) {
	var out []models.PatientImagingAccess
	for _, g := range m.grants {
		if g.PatientID == patientID && g.StudyInstanceUID == studyUID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockAccessRepo) Revoke(_ context.Context, id string, at time.Time) error {
	for _, g := range m.grants {
		if g.ID == id {
			g.Consent = false
			g.RevokedAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubStudies struct {
	studies   map[string]models.Study
	failing   map[string]bool
	searchErr *result.Error
	searches  []models.QueryParams
	fetches   []string
}

func (s *stubStudies) SearchStudies(ctx context.Context, criteria models.QueryParams) result.Result[*models.ImagingSearchResult] {
	s.searches = append(s.searches, criteria)
	if s.searchErr != nil {
		return result.Fail[*models.ImagingSearchResult](s.searchErr.Code, s.searchErr.Message, nil, nil)
	}
	out := &models.ImagingSearchResult{}
	for _, st := range s.studies {
		if criteria.PatientID == "" || st.PatientID == criteria.PatientID {
			out.Studies = append(out.Studies, st)
		}
	}
	out.Total = len(out.Studies)
	return result.OK(out, nil)
}

func (s *stubStudies) GetStudyDetails(ctx context.Context, uid string) result.Result[*models.Study] {
	s.fetches = append(s.fetches, uid)
	if s.failing[uid] {
		return result.Fail[*models.Study](result.CodeStudyRetrievalFailed, "archive down", nil, nil)
	}
	st, ok := s.studies[uid]
	if !ok {
		return result.Fail[*models.Study](result.CodeStudyRetrievalFailed, "not found", nil, nil)
	}
	return result.OK(&st, nil)
}

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *mockStore
	access  *mockAccessRepo
	studies *stubStudies
	clock   *clock.Fixed
}

func newFixture() *fixture {
	store := newMockStore()
	access := &mockAccessRepo{}
	studies := &stubStudies{studies: map[string]models.Study{}, failing: map[string]bool{}}
	clk := clock.NewFixed(epoch)
	ledger := consent.NewLedger(access, idgen.NewSequence("G"), clk, 30, zerolog.Nop())

	return &fixture{
		svc:     NewService(store, studies, ledger, nil, idgen.NewSequence("ID"), clk, zerolog.Nop()),
		store:   store,
		access:  access,
		studies: studies,
		clock:   clk,
	}
}

func (f *fixture) order(t *testing.T, studyUID string) *models.ImagingOrder {
	t.Helper()
	res := f.svc.CreateOrder(context.Background(), models.OrderRequest{
		PatientID:          "P1",
		OrderingProviderID: "DR1",
		StudyInstanceUID:   studyUID,
		Modality:           "CT",
	})
	require.True(t, res.Success, "create order: %+v", res.Error)
	return res.Data
}

// -- Tests --

func TestCreateOrderDefaults(t *testing.T) {
	f := newFixture()
	order := f.order(t, "1.2.3")

	assert.Equal(t, "ID-1", order.ID)
	assert.Equal(t, models.OrderStatusOrdered, order.Status)
	assert.Equal(t, models.UrgencyRoutine, order.Urgency)
	assert.Equal(t, epoch, order.OrderDate)

	got := f.svc.GetOrder(context.Background(), order.ID)
	require.True(t, got.Success)
	assert.Equal(t, "CT", got.Data.Modality)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture()

	res := f.svc.CreateOrder(context.Background(), models.OrderRequest{PatientID: "P1"})
	assert.Equal(t, result.CodeInvalidRequest, res.ErrorCode())
	assert.Contains(t, res.Error.Message, "orderingProviderId")
	assert.Contains(t, res.Error.Message, "modality")

	res = f.svc.CreateOrder(context.Background(), models.OrderRequest{PatientID: "P1", OrderingProviderID: "DR1", Modality: "MR", Urgency: "stat"})
	assert.Equal(t, result.CodeInvalidRequest, res.ErrorCode())
	assert.Empty(t, f.store.orders)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture()
	assert.Equal(t, result.CodeOrderNotFound, f.svc.GetOrder(context.Background(), "nope").ErrorCode())
}

func TestGetReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created := f.svc.CreateReport(ctx, models.ReportRequest{StudyInstanceUID: "1.2.3", PatientID: "P1", RadiologistID: "RAD1"})
	require.True(t, created.Success)

	res := f.svc.GetReport(ctx, created.Data.ID)
	require.True(t, res.Success)
	assert.Equal(t, models.ReportStatusPreliminary, res.Data.Status)

	assert.Equal(t, result.CodeReportNotFound, f.svc.GetReport(ctx, "nope").ErrorCode())
}

func TestValidateOrderTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{models.OrderStatusOrdered, models.OrderStatusInProgress, true},
		{models.OrderStatusOrdered, models.OrderStatusCompleted, true},
		{models.OrderStatusOrdered, models.OrderStatusCancelled, true},
		{models.OrderStatusInProgress, models.OrderStatusCompleted, true},
		{models.OrderStatusInProgress, models.OrderStatusOrdered, false},
		{models.OrderStatusCompleted, models.OrderStatusInProgress, false},
		{models.OrderStatusCancelled, models.OrderStatusOrdered, false},
		{models.OrderStatusCompleted, models.OrderStatusCompleted, true},
		{models.OrderStatusOrdered, "scheduled", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			err := ValidateOrderTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestValidateReportTransition(t *testing.T) {
	assert.NoError(t, ValidateReportTransition(models.ReportStatusPreliminary, models.ReportStatusFinal))
	assert.NoError(t, ValidateReportTransition(models.ReportStatusFinal, models.ReportStatusAmended))
	assert.NoError(t, ValidateReportTransition(models.ReportStatusCorrected, models.ReportStatusAmended))
	assert.ErrorIs(t, ValidateReportTransition(models.ReportStatusFinal, models.ReportStatusPreliminary), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateReportTransition(models.ReportStatusCancelled, models.ReportStatusFinal), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateReportTransition(models.ReportStatusAmended, models.ReportStatusFinal), ErrInvalidTransition)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.order(t, "1.2.3")

	res := f.svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusInProgress, "patient arrived")
	require.True(t, res.Success)
	assert.Equal(t, models.OrderStatusInProgress, f.store.orders[order.ID].Status)
	assert.Equal(t, "patient arrived", f.store.orders[order.ID].Notes)

	// setting the same status again is a no-op
	updates := f.store.orderUpdates
	same := f.svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusInProgress, "")
	require.True(t, same.Success)
	assert.Equal(t, updates, f.store.orderUpdates)

	bad := f.svc.UpdateOrderStatus(ctx, order.ID, models.OrderStatusOrdered, "")
	assert.Equal(t, result.CodeOrderUpdateFailed, bad.ErrorCode())
	assert.Equal(t, models.OrderStatusInProgress, f.store.orders[order.ID].Status)

	missing := f.svc.UpdateOrderStatus(ctx, "nope", models.OrderStatusCompleted, "")
	assert.Equal(t, result.CodeOrderNotFound, missing.ErrorCode())
}

func TestEndToEndFinalReportCompletesOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o1 := f.order(t, "1.2.3")
	assert.Equal(t, models.OrderStatusOrdered, o1.Status)

	require.True(t, f.svc.UpdateOrderStatus(ctx, o1.ID, models.OrderStatusInProgress, "").Success)

	r1 := f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "1.2.3",
		PatientID:        "P1",
		RadiologistID:    "RAD1",
		Impression:       "No acute findings",
		Status:           models.ReportStatusFinal,
	})
	require.True(t, r1.Success, "%+v", r1.Error)
	assert.Equal(t, o1.ID, r1.Data.OrderID)
	require.NotNil(t, r1.Data.FinalizedAt)

	got := f.svc.GetOrder(ctx, o1.ID)
	require.True(t, got.Success)
	assert.Equal(t, models.OrderStatusCompleted, got.Data.Status)
}

func TestRefinalizeIsNoOpOnOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o1 := f.order(t, "1.2.3")
	require.True(t, f.svc.UpdateOrderStatus(ctx, o1.ID, models.OrderStatusInProgress, "").Success)

	r1 := f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "1.2.3", OrderID: o1.ID, PatientID: "P1", RadiologistID: "RAD1",
		Status: models.ReportStatusPreliminary,
	})
	require.True(t, r1.Success)
	assert.Equal(t, models.OrderStatusInProgress, f.store.orders[o1.ID].Status)

	final := f.svc.UpdateReportStatus(ctx, r1.Data.ID, models.ReportStatusFinal)
	require.True(t, final.Success)
	assert.Equal(t, models.OrderStatusCompleted, f.store.orders[o1.ID].Status)
	firstFinalized := *f.store.reports[r1.Data.ID].FinalizedAt

	updates := f.store.orderUpdates
	f.clock.Advance(time.Hour)

	again := f.svc.UpdateReportStatus(ctx, r1.Data.ID, models.ReportStatusFinal)
	require.True(t, again.Success)
	assert.Equal(t, updates, f.store.orderUpdates)
	assert.Equal(t, models.OrderStatusCompleted, f.store.orders[o1.ID].Status)

	amended := f.svc.UpdateReportStatus(ctx, r1.Data.ID, models.ReportStatusAmended)
	require.True(t, amended.Success)
	assert.Equal(t, updates, f.store.orderUpdates)
	assert.Equal(t, firstFinalized, *f.store.reports[r1.Data.ID].FinalizedAt)
}

func TestFinalizeRollsBackWhenOrderUpdateFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o1 := f.order(t, "1.2.3")
	f.store.failUpdate = errors.New("deadlock")

	res := f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "1.2.3", PatientID: "P1", RadiologistID: "RAD1", Status: models.ReportStatusFinal,
	})
	assert.Equal(t, result.CodeReportCreationFailed, res.ErrorCode())
	assert.Empty(t, f.store.reports)
	assert.Equal(t, models.OrderStatusOrdered, f.store.orders[o1.ID].Status)
}

func TestCreateReportUnknownOrder(t *testing.T) {
	f := newFixture()

	res := f.svc.CreateReport(context.Background(), models.ReportRequest{
		StudyInstanceUID: "1.2.3", OrderID: "missing", PatientID: "P1", RadiologistID: "RAD1", Status: models.ReportStatusFinal,
	})
	assert.Equal(t, result.CodeReportCreationFailed, res.ErrorCode())
}

func TestCreateReportWithoutOrder(t *testing.T) {
	f := newFixture()

	res := f.svc.CreateReport(context.Background(), models.ReportRequest{
		StudyInstanceUID: "7.7.7", PatientID: "P1", RadiologistID: "RAD1", Status: models.ReportStatusFinal,
	})
	require.True(t, res.Success)
	assert.Empty(t, res.Data.OrderID)
}

func TestUpdateReportStatusErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.Equal(t, result.CodeReportNotFound, f.svc.UpdateReportStatus(ctx, "nope", models.ReportStatusFinal).ErrorCode())

	r := f.svc.CreateReport(ctx, models.ReportRequest{StudyInstanceUID: "1.2.3", PatientID: "P1", RadiologistID: "RAD1"})
	require.True(t, r.Success)
	assert.Equal(t, models.ReportStatusPreliminary, r.Data.Status)

	bad := f.svc.UpdateReportStatus(ctx, r.Data.ID, models.ReportStatusAmended)
	assert.Equal(t, result.CodeReportUpdateFailed, bad.ErrorCode())
}

func TestStatusForPrecedence(t *testing.T) {
	order := func(s models.OrderStatus) models.ImagingOrder { return models.ImagingOrder{Status: s} }
	report := func(s models.ReportStatus) models.ImagingReport { return models.ImagingReport{Status: s} }

	tests := []struct {
		name    string
		orders  []models.ImagingOrder
		reports []models.ImagingReport
		want    models.WorkflowStatus
	}{
		{"in-progress beats all completed rule", []models.ImagingOrder{order(models.OrderStatusInProgress)}, []models.ImagingReport{report(models.ReportStatusFinal)}, models.WorkflowActive},
		{"preliminary beats all completed rule", []models.ImagingOrder{order(models.OrderStatusCompleted)}, []models.ImagingReport{report(models.ReportStatusPreliminary)}, models.WorkflowPendingReview},
		{"all completed", []models.ImagingOrder{order(models.OrderStatusCompleted)}, []models.ImagingReport{report(models.ReportStatusFinal)}, models.WorkflowCompleted},
		{"in-progress beats preliminary", []models.ImagingOrder{order(models.OrderStatusInProgress)}, []models.ImagingReport{report(models.ReportStatusPreliminary)}, models.WorkflowActive},
		{"mixed falls back to active", []models.ImagingOrder{order(models.OrderStatusCompleted), order(models.OrderStatusOrdered)}, nil, models.WorkflowActive},
		{"no orders", nil, nil, models.WorkflowActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.orders, tt.reports))
		})
	}
}

func TestGetProviderWorkflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.studies.studies["1.2.3"] = models.Study{StudyInstanceUID: "1.2.3", PatientID: "P1"}
	f.studies.studies["4.5.6"] = models.Study{StudyInstanceUID: "4.5.6", PatientID: "P1"}
	f.studies.studies["9.9.9"] = models.Study{StudyInstanceUID: "9.9.9", PatientID: "P1"}

	o1 := f.order(t, "1.2.3")
	f.order(t, "4.5.6")
	require.True(t, f.svc.UpdateOrderStatus(ctx, o1.ID, models.OrderStatusCompleted, "").Success)
	require.True(t, f.svc.CreateReport(ctx, models.ReportRequest{StudyInstanceUID: "4.5.6", PatientID: "P1", RadiologistID: "RAD1"}).Success)

	res := f.svc.GetProviderWorkflow(ctx, "DR1", "P1")
	require.True(t, res.Success)
	wf := res.Data

	assert.Len(t, wf.Orders, 2)
	assert.Len(t, wf.Reports, 1)
	// 9.9.9 belongs to the patient but is not bound to any order
	var uids []string
	for _, s := range wf.Studies {
		uids = append(uids, s.StudyInstanceUID)
	}
	assert.ElementsMatch(t, []string{"1.2.3", "4.5.6"}, uids)
	assert.Equal(t, models.WorkflowPendingReview, wf.Status)

	// one batched search only
	require.Len(t, f.studies.searches, 1)
	assert.Equal(t, "P1", f.studies.searches[0].PatientID)
}

func TestGetProviderWorkflowReportLinkedByOrderID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.studies.studies["5.5.5"] = models.Study{StudyInstanceUID: "5.5.5", PatientID: "P1"}

	// placed before the study exists
	o1 := f.order(t, "")
	r := f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "5.5.5", OrderID: o1.ID, PatientID: "P1", RadiologistID: "RAD1",
	})
	require.True(t, r.Success)
	assert.Equal(t, "5.5.5", f.store.orders[o1.ID].StudyInstanceUID)

	require.True(t, f.svc.UpdateOrderStatus(ctx, o1.ID, models.OrderStatusCompleted, "").Success)

	res := f.svc.GetProviderWorkflow(ctx, "DR1", "P1")
	require.True(t, res.Success)
	require.Len(t, res.Data.Reports, 1)
	assert.Equal(t, r.Data.ID, res.Data.Reports[0].ID)
	require.Len(t, res.Data.Studies, 1)
	assert.Equal(t, "5.5.5", res.Data.Studies[0].StudyInstanceUID)
	assert.Equal(t, models.WorkflowPendingReview, res.Data.Status)
}

func TestGetProviderWorkflowFindsReportsOnUnboundOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// rows written before studies were bound to orders on report creation
	o1 := f.order(t, "")
	f.store.reports["R-old"] = &models.ImagingReport{
		ID: "R-old", OrderID: o1.ID, StudyInstanceUID: "5.5.5", PatientID: "P1",
		RadiologistID: "RAD1", Status: models.ReportStatusPreliminary,
	}
	f.store.orders[o1.ID].Status = models.OrderStatusCompleted

	res := f.svc.GetProviderWorkflow(ctx, "DR1", "P1")
	require.True(t, res.Success)
	require.Len(t, res.Data.Reports, 1)
	assert.Equal(t, models.WorkflowPendingReview, res.Data.Status)
	require.Len(t, f.studies.searches, 1)
}

func TestFinalReportBindsStudyToOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o1 := f.order(t, "")
	res := f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "5.5.5", OrderID: o1.ID, PatientID: "P1", RadiologistID: "RAD1", Status: models.ReportStatusFinal,
	})
	require.True(t, res.Success)
	assert.Equal(t, "5.5.5", f.store.orders[o1.ID].StudyInstanceUID)
	assert.Equal(t, models.OrderStatusCompleted, f.store.orders[o1.ID].Status)

	// a bound study is never overwritten
	o2 := f.order(t, "1.2.3")
	require.True(t, f.svc.CreateReport(ctx, models.ReportRequest{
		StudyInstanceUID: "5.5.5", OrderID: o2.ID, PatientID: "P1", RadiologistID: "RAD1",
	}).Success)
	assert.Equal(t, "1.2.3", f.store.orders[o2.ID].StudyInstanceUID)
}

func TestPreliminaryReportUnknownOrder(t *testing.T) {
	f := newFixture()

	res := f.svc.CreateReport(context.Background(), models.ReportRequest{
		StudyInstanceUID: "1.2.3", OrderID: "missing", PatientID: "P1", RadiologistID: "RAD1",
	})
	assert.Equal(t, result.CodeReportCreationFailed, res.ErrorCode())
	assert.Empty(t, f.store.reports)
}

func TestGetProviderWorkflowNoOrders(t *testing.T) {
	f := newFixture()

	res := f.svc.GetProviderWorkflow(context.Background(), "DR1", "P1")
	require.True(t, res.Success)
	assert.Empty(t, res.Data.Orders)
	assert.Equal(t, models.WorkflowActive, res.Data.Status)
	assert.Empty(t, f.studies.searches)
}

func TestGetProviderWorkflowSearchFailure(t *testing.T) {
	f := newFixture()
	f.order(t, "1.2.3")
	f.studies.searchErr = &result.Error{Code: result.CodeNoArchive, Message: "no archive available"}

	res := f.svc.GetProviderWorkflow(context.Background(), "DR1", "P1")
	assert.Equal(t, result.CodeWorkflowRetrievalFailed, res.ErrorCode())
}

func TestGetPatientAccessibleStudies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.studies.studies["1.2.3"] = models.Study{StudyInstanceUID: "1.2.3", PatientID: "P1"}
	f.studies.studies["4.5.6"] = models.Study{StudyInstanceUID: "4.5.6", PatientID: "P1"}

	require.True(t, f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1", StudyInstanceUID: "1.2.3", TTLDays: 1}).Success)
	require.True(t, f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1", StudyInstanceUID: "4.5.6", TTLDays: 10}).Success)

	// the first grant expires
	f.clock.Advance(48 * time.Hour)

	res := f.svc.GetPatientAccessibleStudies(ctx, "P1")
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "4.5.6", res.Data[0].StudyInstanceUID)
	assert.False(t, res.Metadata.Partial)
	assert.Equal(t, []string{"4.5.6"}, f.studies.fetches)
}

func TestGetPatientAccessibleStudiesPartial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.studies.studies["1.2.3"] = models.Study{StudyInstanceUID: "1.2.3", PatientID: "P1"}
	f.studies.failing["4.5.6"] = true

	for _, uid := range []string{"1.2.3", "4.5.6", "1.2.3"} {
		require.True(t, f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1", StudyInstanceUID: uid}).Success)
	}

	res := f.svc.GetPatientAccessibleStudies(ctx, "P1")
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.True(t, res.Metadata.Partial)
	// one fetch per distinct study
	assert.Len(t, f.studies.fetches, 2)
}

func TestGrantAndRevokePatientAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	invalid := f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1"})
	assert.Equal(t, result.CodeInvalidRequest, invalid.ErrorCode())

	badType := f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1", StudyInstanceUID: "1.2.3", AccessType: "print"})
	assert.Equal(t, result.CodeAccessGrantFailed, badType.ErrorCode())

	grant := f.svc.GrantPatientAccess(ctx, models.AccessGrantRequest{PatientID: "P1", StudyInstanceUID: "1.2.3", AccessType: models.AccessShare})
	require.True(t, grant.Success)
	assert.Equal(t, "G-1", grant.Data.ID)
	assert.Equal(t, epoch.AddDate(0, 0, 30), *grant.Data.ExpiresAt)

	revoked := f.svc.RevokePatientAccess(ctx, grant.Data.ID)
	require.True(t, revoked.Success)
	assert.Equal(t, "G-1", revoked.Data)
	assert.False(t, f.access.grants[0].Consent)

	assert.Equal(t, result.CodeAccessRevokeFailed, f.svc.RevokePatientAccess(ctx, "nope").ErrorCode())
}
