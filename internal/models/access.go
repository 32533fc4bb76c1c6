package models

import "time"

// AccessType is what a consent grant permits
type AccessType string

const (
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
	AccessShare    AccessType = "share"
)

// Covers reports whether a grant of type t also permits want.
// share implies download, download implies view.
func (t AccessType) Covers(want AccessType) bool {
	return accessRank[t] >= accessRank[want] && accessRank[want] > 0
}

var accessRank = map[AccessType]int{
	AccessView:     1,
	AccessDownload: 2,
	AccessShare:    3,
}

// Valid reports whether t is a known access type
func (t AccessType) Valid() bool {
	return accessRank[t] > 0
}

// PatientImagingAccess is a time-boxed consent grant for one study
type PatientImagingAccess struct {
	ID                 string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	PatientID          string     `gorm:"type:varchar(64);not null;index:idx_access_patient_study,priority:1" json:"patientId"`
	StudyInstanceUID   string     `gorm:"type:varchar(128);not null;index:idx_access_patient_study,priority:2" json:"studyInstanceUid"`
	AccessType         AccessType `gorm:"type:varchar(16);not null" json:"accessType"`
	Consent            bool       `gorm:"not null" json:"consent"`
	ConsentDate        time.Time  `gorm:"not null" json:"consentDate"`
	ExpiresAt          *time.Time `gorm:"index" json:"expiresAt,omitempty"`
	GrantingProviderID string     `gorm:"type:varchar(64)" json:"grantingProviderId,omitempty"`
	RevokedAt          *time.Time `json:"revokedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// TableName overrides the table name
func (PatientImagingAccess) TableName() string {
	return "patient_imaging_access"
}

// AccessGrantRequest is the body of a grant call
type AccessGrantRequest struct {
	PatientID          string     `json:"patientId"`
	StudyInstanceUID   string     `json:"studyInstanceUid"`
	AccessType         AccessType `json:"accessType,omitempty"`
	GrantingProviderID string     `json:"grantingProviderId"`
	TTLDays            int        `json:"ttlDays,omitempty"`
}

// ViewerKind identifies which client displays a session
type ViewerKind string

const (
	ViewerWeb    ViewerKind = "web"
	ViewerMobile ViewerKind = "mobile"
)

// SessionAction is one entry of a session's action log
type SessionAction struct {
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ImagingSession is an ephemeral viewing session minted after access checks
type ImagingSession struct {
	ID               string          `json:"id"`
	PatientID        string          `json:"patientId"`
	StudyInstanceUID string          `json:"studyInstanceUid"`
	AccessType       AccessType      `json:"accessType"`
	Viewer           ViewerKind      `json:"viewer"`
	StartedAt        time.Time       `json:"startedAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	Actions          []SessionAction `json:"actions"`
}
