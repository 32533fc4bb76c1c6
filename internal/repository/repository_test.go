package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepositoryTestSuite struct {
	suite.Suite
	sqlDB *sql.DB
	mock  sqlmock.Sqlmock
	db    *gorm.DB
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(s.T(), err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	s.sqlDB, s.mock, s.db = sqlDB, mock, db
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.sqlDB.Close()
}

func (s *RepositoryTestSuite) TestArchiveGetByIDNotFound() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "archive_servers" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	archive, err := NewArchiveRepository(s.db).GetByID(context.Background(), "missing")
	assert.Nil(s.T(), archive)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestArchiveListRegistrationOrder() {
	now := time.Now()
	s.mock.ExpectQuery(`SELECT (.+) FROM "archive_servers" (.+) ORDER BY created_at ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "is_active", "created_at"}).
			AddRow("a2", "Second", "dicomweb", true, now.Add(-time.Hour)).
			AddRow("a1", "First", "dimse", false, now))

	archives, err := NewArchiveRepository(s.db).List(context.Background())
	require.NoError(s.T(), err)
	require.Len(s.T(), archives, 2)
	assert.Equal(s.T(), "a2", archives[0].ID)
	assert.Equal(s.T(), models.ArchiveTypeDIMSE, archives[1].Type)
	assert.False(s.T(), archives[1].IsActive)
}

func (s *RepositoryTestSuite) TestArchivePrimaryID() {
	s.mock.ExpectQuery(`SELECT "id" FROM "archive_servers" WHERE is_primary = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	id, err := NewArchiveRepository(s.db).PrimaryID(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a1", id)
}

func (s *RepositoryTestSuite) TestArchivePrimaryIDUnset() {
	s.mock.ExpectQuery(`SELECT "id" FROM "archive_servers" WHERE is_primary = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := NewArchiveRepository(s.db).PrimaryID(context.Background())
	require.NoError(s.T(), err)
	assert.Empty(s.T(), id)
}

func (s *RepositoryTestSuite) TestArchiveCreateKeepsInactive() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`INSERT INTO "archive_servers"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	archive := &models.ArchiveServer{Name: "Cold", Type: models.ArchiveTypeOrthanc, Host: "cold", Port: 8042, IsActive: false}
	require.NoError(s.T(), NewArchiveRepository(s.db).Create(context.Background(), archive))
	assert.NotEmpty(s.T(), archive.ID)
	assert.False(s.T(), archive.IsActive)
}

func (s *RepositoryTestSuite) TestArchiveUpdate() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "archive_servers" SET (.+) WHERE (.+)"id" = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	archive := &models.ArchiveServer{ID: "a1", Name: "Main", Type: models.ArchiveTypeDICOMWeb, Host: "pacs", Port: 80, CreatedAt: time.Now()}
	assert.NoError(s.T(), NewArchiveRepository(s.db).Update(context.Background(), archive))
}

func (s *RepositoryTestSuite) TestArchiveDelete() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "archive_servers" SET "deleted_at"=\$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	assert.NoError(s.T(), NewArchiveRepository(s.db).Delete(context.Background(), "a1"))
}

func (s *RepositoryTestSuite) TestArchiveDeleteUnknown() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "archive_servers" SET "deleted_at"=\$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	err := NewArchiveRepository(s.db).Delete(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestAuditListByPatientPages() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "audit_logs" WHERE patient_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("P1", 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "action"}).AddRow("2f0c6a52-8d0e-4c4b-9a51-0f1f3d3f6b1a", "P1", "view"))

	logs, err := NewAuditRepository(s.db).ListByPatient(context.Background(), "P1", 20, 40)
	require.NoError(s.T(), err)
	require.Len(s.T(), logs, 1)
	assert.Equal(s.T(), "P1", logs[0].PatientID)
}

func (s *RepositoryTestSuite) TestAuditListByResourceUID() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "audit_logs" WHERE resource_uid = \$1 ORDER BY created_at DESC`).
		WithArgs("1.2.3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource_uid"}).
			AddRow("2f0c6a52-8d0e-4c4b-9a51-0f1f3d3f6b1a", "1.2.3").
			AddRow("9d1e0b7c-3a6f-4e2d-8b4c-5e6f7a8b9c0d", "1.2.3"))

	logs, err := NewAuditRepository(s.db).ListByResourceUID(context.Background(), "1.2.3")
	require.NoError(s.T(), err)
	assert.Len(s.T(), logs, 2)
}

func (s *RepositoryTestSuite) TestArchiveSetPrimaryUnknown() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "archive_servers" SET "is_primary"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectRollback()

	err := NewArchiveRepository(s.db).SetPrimary(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestArchiveSetPrimary() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "archive_servers" SET "is_primary"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(`UPDATE "archive_servers" SET "is_primary"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	assert.NoError(s.T(), NewArchiveRepository(s.db).SetPrimary(context.Background(), "a1"))
}

func (s *RepositoryTestSuite) TestAccessRevoke() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "patient_imaging_access" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := NewAccessRepository(s.db).Revoke(context.Background(), "g1", time.Now())
	assert.NoError(s.T(), err)
}

func (s *RepositoryTestSuite) TestAccessRevokeUnknown() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "patient_imaging_access" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	err := NewAccessRepository(s.db).Revoke(context.Background(), "nope", time.Now())
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestAccessListByPatient() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "patient_imaging_access" WHERE patient_id = \$1 ORDER BY consent_date ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "study_instance_uid", "access_type", "consent"}).
			AddRow("g1", "p1", "1.2.3", "view", true).
			AddRow("g2", "p1", "1.2.4", "share", false))

	grants, err := NewAccessRepository(s.db).ListByPatient(context.Background(), "p1")
	require.NoError(s.T(), err)
	require.Len(s.T(), grants, 2)
	assert.Equal(s.T(), models.AccessShare, grants[1].AccessType)
	assert.False(s.T(), grants[1].Consent)
}

func (s *RepositoryTestSuite) TestGetOrderNotFound() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_orders" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewWorkflowRepository(s.db).GetOrder(context.Background(), "o1")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestGetOrderForUpdateLocks() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_orders" WHERE id = \$1 (.+) FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("o1", "in-progress"))

	order, err := NewWorkflowRepository(s.db).GetOrderForUpdate(context.Background(), "o1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.OrderStatusInProgress, order.Status)
}

func (s *RepositoryTestSuite) TestListReportsForOrdersEmpty() {
	reports, err := NewWorkflowRepository(s.db).ListReportsForOrders(context.Background(), nil, nil)
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), reports)
}

func (s *RepositoryTestSuite) TestListReportsForOrdersByStudy() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_reports" WHERE study_instance_uid IN \(\$1,\$2\) ORDER BY report_date DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "study_instance_uid", "status"}).
			AddRow("r1", "1.2.3", "final"))

	reports, err := NewWorkflowRepository(s.db).ListReportsForOrders(context.Background(), nil, []string{"1.2.3", "1.2.4"})
	require.NoError(s.T(), err)
	require.Len(s.T(), reports, 1)
	assert.Equal(s.T(), models.ReportStatusFinal, reports[0].Status)
}

func (s *RepositoryTestSuite) TestListReportsForOrdersByOrderOrStudy() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_reports" WHERE order_id IN \(\$1\) OR study_instance_uid IN \(\$2\) ORDER BY report_date DESC`).
		WithArgs("o1", "1.2.3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "study_instance_uid", "status"}).
			AddRow("r1", "o1", "7.7.7", "preliminary").
			AddRow("r2", "", "1.2.3", "final"))

	reports, err := NewWorkflowRepository(s.db).ListReportsForOrders(context.Background(), []string{"o1"}, []string{"1.2.3"})
	require.NoError(s.T(), err)
	require.Len(s.T(), reports, 2)
	assert.Equal(s.T(), "o1", reports[0].OrderID)
}

func (s *RepositoryTestSuite) TestListReportsForOrdersByOrderOnly() {
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_reports" WHERE order_id IN \(\$1,\$2\)`).
		WithArgs("o1", "o2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}).AddRow("r1", "o2"))

	reports, err := NewWorkflowRepository(s.db).ListReportsForOrders(context.Background(), []string{"o1", "o2"}, nil)
	require.NoError(s.T(), err)
	assert.Len(s.T(), reports, 1)
}

func (s *RepositoryTestSuite) TestTransactionRollsBackOnError() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT (.+) FROM "imaging_orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("o1", "ordered"))
	s.mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewWorkflowRepository(s.db).Transaction(context.Background(), func(tx WorkflowStore) error {
		if _, err := tx.GetOrderForUpdate(context.Background(), "o1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(s.T(), err, boom)
}
