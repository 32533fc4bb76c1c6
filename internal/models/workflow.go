package models

import "time"

// OrderStatus is the lifecycle state of an imaging order
type OrderStatus string

const (
	OrderStatusOrdered    OrderStatus = "ordered"
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Urgency of an imaging order
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyUrgent  Urgency = "urgent"
)

// ImagingOrder is a request for an imaging exam
type ImagingOrder struct {
	ID                 string      `gorm:"type:varchar(64);primaryKey" json:"id"`
	PatientID          string      `gorm:"type:varchar(64);not null;index:idx_orders_provider_patient,priority:2" json:"patientId"`
	OrderingProviderID string      `gorm:"type:varchar(64);not null;index:idx_orders_provider_patient,priority:1" json:"orderingProviderId"`
	StudyInstanceUID   string      `gorm:"type:varchar(128);index" json:"studyInstanceUid,omitempty"`
	OrderDate          time.Time   `json:"orderDate"`
	Modality           string      `gorm:"type:varchar(16);not null" json:"modality"`
	BodyPart           string      `gorm:"type:varchar(64)" json:"bodyPart,omitempty"`
	ClinicalIndication string      `gorm:"type:text" json:"clinicalIndication,omitempty"`
	Urgency            Urgency     `gorm:"type:varchar(16);not null;default:'routine'" json:"urgency"`
	Status             OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes              string      `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// TableName overrides the table name
func (ImagingOrder) TableName() string {
	return "imaging_orders"
}

// OrderRequest carries the caller-supplied fields of a new order
type OrderRequest struct {
	PatientID          string    `json:"patientId"`
	OrderingProviderID string    `json:"orderingProviderId"`
	StudyInstanceUID   string    `json:"studyInstanceUid,omitempty"`
	OrderDate          time.Time `json:"orderDate,omitempty"`
	Modality           string    `json:"modality"`
	BodyPart           string    `json:"bodyPart,omitempty"`
	ClinicalIndication string    `json:"clinicalIndication,omitempty"`
	Urgency            Urgency   `json:"urgency,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// ReportStatus is the lifecycle state of an imaging report
type ReportStatus string

const (
	ReportStatusPreliminary ReportStatus = "preliminary"
	ReportStatusFinal       ReportStatus = "final"
	ReportStatusCorrected   ReportStatus = "corrected"
	ReportStatusCancelled   ReportStatus = "cancelled"
	ReportStatusAmended     ReportStatus = "amended"
)

// ImagingReport is a radiologist's read of a study
type ImagingReport struct {
	ID               string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	StudyInstanceUID string       `gorm:"type:varchar(128);not null;index" json:"studyInstanceUid"`
	OrderID          string       `gorm:"type:varchar(64);index" json:"orderId,omitempty"`
	PatientID        string       `gorm:"type:varchar(64);not null;index" json:"patientId"`
	RadiologistID    string       `gorm:"type:varchar(64);not null" json:"radiologistId"`
	ReportDate       time.Time    `json:"reportDate"`
	Findings         string       `gorm:"type:text" json:"findings,omitempty"`
	Impression       string       `gorm:"type:text" json:"impression,omitempty"`
	Abnormal         bool         `json:"abnormal"`
	Status           ReportStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	// FinalizedAt is set the first time the report becomes final
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName overrides the table name
func (ImagingReport) TableName() string {
	return "imaging_reports"
}

// ReportRequest carries the caller-supplied fields of a new report
type ReportRequest struct {
	StudyInstanceUID string       `json:"studyInstanceUid"`
	OrderID          string       `json:"orderId,omitempty"`
	PatientID        string       `json:"patientId"`
	RadiologistID    string       `json:"radiologistId"`
	ReportDate       time.Time    `json:"reportDate,omitempty"`
	Findings         string       `json:"findings,omitempty"`
	Impression       string       `json:"impression,omitempty"`
	Abnormal         bool         `json:"abnormal"`
	Status           ReportStatus `json:"status,omitempty"`
}

// WorkflowStatus is derived from orders and reports, never stored
type WorkflowStatus string

const (
	WorkflowActive        WorkflowStatus = "active"
	WorkflowPendingReview WorkflowStatus = "pending-review"
	WorkflowCompleted     WorkflowStatus = "completed"
)

// ProviderWorkflow is a provider's view of one patient's imaging work
type ProviderWorkflow struct {
	ProviderID string          `json:"providerId"`
	PatientID  string          `json:"patientId"`
	Orders     []ImagingOrder  `json:"orders"`
	Studies    []Study         `json:"studies"`
	Reports    []ImagingReport `json:"reports"`
	Status     WorkflowStatus  `json:"status"`
}
