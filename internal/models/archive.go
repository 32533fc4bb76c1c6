package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArchiveType is the transport an archive speaks
type ArchiveType string

const (
	ArchiveTypeDICOMWeb ArchiveType = "dicomweb"
	ArchiveTypeDIMSE    ArchiveType = "dimse"
	ArchiveTypeOrthanc  ArchiveType = "orthanc"
)

// ArchiveRole distinguishes plain archives from viewer-capable ones
type ArchiveRole string

const (
	ArchiveRoleArchive ArchiveRole = "archive"
	ArchiveRoleViewer  ArchiveRole = "viewer"
)

// ArchiveServer is a registered imaging archive
type ArchiveServer struct {
	ID            string      `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name          string      `gorm:"type:varchar(255);not null" json:"name"`
	Type          ArchiveType `gorm:"type:varchar(50);not null" json:"type"`
	Scheme        string      `gorm:"type:varchar(10);default:'http'" json:"scheme"`
	Host          string      `gorm:"type:varchar(500);not null" json:"host"`
	Port          int         `gorm:"not null" json:"port"`
	PathPrefix    string      `gorm:"type:varchar(255)" json:"path_prefix,omitempty"`
	AETitle       string      `gorm:"type:varchar(50)" json:"ae_title,omitempty"`
	Username      string      `gorm:"type:varchar(255)" json:"username,omitempty"`
	Password      string      `gorm:"type:text" json:"-"`
	APIKey        string      `gorm:"type:text" json:"-"`
	Role          ArchiveRole `gorm:"type:varchar(20);not null;default:'archive'" json:"role"`
	ViewerBaseURL string      `gorm:"type:varchar(500)" json:"viewer_base_url,omitempty"`
	IsActive      bool        `gorm:"not null;index" json:"is_active"`
	IsPrimary     bool        `gorm:"default:false" json:"is_primary"`

	// Connection status tracking
	LastConnectionTest   time.Time `json:"last_connection_test,omitempty"`
	LastConnectionStatus bool      `json:"last_connection_status,omitempty"`
	LastError            string    `gorm:"type:text" json:"last_error,omitempty"`

	// CreatedAt doubles as registration order
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (ArchiveServer) TableName() string {
	return "archive_servers"
}

// BeforeCreate hook
func (a *ArchiveServer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// BaseURL returns scheme://host:port followed by the path prefix
func (a ArchiveServer) BaseURL() string {
	scheme := a.Scheme
	if scheme == "" {
		scheme = "http"
		if a.Port == 443 {
			scheme = "https"
		}
	}
	prefix := a.PathPrefix
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, a.Host, a.Port, strings.TrimSuffix(prefix, "/"))
}

// IsViewer reports whether the archive can serve the web viewer
func (a ArchiveServer) IsViewer() bool {
	return a.Role == ArchiveRoleViewer
}

// ViewerURL returns the viewer base, falling back to BaseURL
func (a ArchiveServer) ViewerURL() string {
	if a.ViewerBaseURL != "" {
		return strings.TrimSuffix(a.ViewerBaseURL, "/")
	}
	return a.BaseURL()
}

// ConnectionStatus represents the status of an archive connection
type ConnectionStatus struct {
	ArchiveID    string    `json:"archive_id"`
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// ArchiveRequest represents a request to register an archive
type ArchiveRequest struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Type          ArchiveType `json:"type"`
	Scheme        string      `json:"scheme,omitempty"`
	Host          string      `json:"host"`
	Port          int         `json:"port"`
	PathPrefix    string      `json:"path_prefix,omitempty"`
	AETitle       string      `json:"ae_title,omitempty"`
	Username      string      `json:"username,omitempty"`
	Password      string      `json:"password,omitempty"`
	APIKey        string      `json:"api_key,omitempty"`
	Role          ArchiveRole `json:"role,omitempty"`
	ViewerBaseURL string      `json:"viewer_base_url,omitempty"`
	// IsActive defaults to true when omitted
	IsActive *bool `json:"is_active,omitempty"`
}

// Validate checks the fields every archive needs
func (r ArchiveRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Host == "" {
		return fmt.Errorf("host is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("invalid port: %d", r.Port)
	}
	switch r.Type {
	case ArchiveTypeDICOMWeb, ArchiveTypeOrthanc:
	case ArchiveTypeDIMSE:
		if r.AETitle == "" {
			return fmt.Errorf("ae_title is required for dimse archives")
		}
	default:
		return fmt.Errorf("unsupported archive type: %s", r.Type)
	}
	if r.Role != "" && r.Role != ArchiveRoleArchive && r.Role != ArchiveRoleViewer {
		return fmt.Errorf("unsupported archive role: %s", r.Role)
	}
	return nil
}

// ToArchive builds a new ArchiveServer from the request
func (r ArchiveRequest) ToArchive() *ArchiveServer {
	archive := &ArchiveServer{ID: r.ID, IsActive: true}
	r.Apply(archive)
	return archive
}

// Apply copies the request onto an existing archive. Omitted credentials and
// an omitted is_active leave the stored values alone.
func (r ArchiveRequest) Apply(a *ArchiveServer) {
	role := r.Role
	if role == "" {
		role = ArchiveRoleArchive
	}
	a.Name = r.Name
	a.Type = r.Type
	a.Scheme = r.Scheme
	a.Host = r.Host
	a.Port = r.Port
	a.PathPrefix = r.PathPrefix
	a.AETitle = r.AETitle
	a.Username = r.Username
	a.Role = role
	a.ViewerBaseURL = r.ViewerBaseURL
	if r.Password != "" {
		a.Password = r.Password
	}
	if r.APIKey != "" {
		a.APIKey = r.APIKey
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
}
