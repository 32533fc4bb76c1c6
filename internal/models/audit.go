package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditSessionCreated = "session.created"
	AuditAccessDenied   = "access.denied"
	AuditAccessGranted  = "access.granted"
	AuditAccessRevoked  = "access.revoked"
	AuditStudyRetrieved = "study.retrieved"
	AuditReportFinal    = "report.finalized"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ActorID      string    `gorm:"type:varchar(64);index" json:"actor_id"`
	PatientID    string    `gorm:"type:varchar(64);index" json:"patient_id,omitempty"`
	Action       string    `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceUID  string    `gorm:"type:varchar(255);index" json:"resource_uid"`
	ArchiveID    string    `gorm:"type:varchar(64)" json:"archive_id,omitempty"`
	Status       string    `gorm:"type:varchar(20);index" json:"status"` // success, failure
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	Duration     int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate hook
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
