// Package result defines the envelope every public gateway operation returns.
package result

import "time"

// Code identifies a failure class at the service boundary
type Code string

const (
	CodeNoArchive               Code = "NO_ARCHIVE"
	CodeSearchFailed            Code = "SEARCH_FAILED"
	CodeStudyRetrievalFailed    Code = "STUDY_RETRIEVAL_FAILED"
	CodeAccessDenied            Code = "ACCESS_DENIED"
	CodeSessionCreationFailed   Code = "SESSION_CREATION_FAILED"
	CodeSessionNotFound         Code = "SESSION_NOT_FOUND"
	CodeNoViewerArchive         Code = "NO_VIEWER_ARCHIVE"
	CodeServerNotFound          Code = "SERVER_NOT_FOUND"
	CodeConnectionFailed        Code = "CONNECTION_FAILED"
	CodeOrderNotFound           Code = "ORDER_NOT_FOUND"
	CodeOrderCreationFailed     Code = "ORDER_CREATION_FAILED"
	CodeOrderUpdateFailed       Code = "ORDER_UPDATE_FAILED"
	CodeReportNotFound          Code = "REPORT_NOT_FOUND"
	CodeReportCreationFailed    Code = "REPORT_CREATION_FAILED"
	CodeReportUpdateFailed      Code = "REPORT_UPDATE_FAILED"
	CodeWorkflowRetrievalFailed Code = "WORKFLOW_RETRIEVAL_FAILED"
	CodeAccessGrantFailed       Code = "ACCESS_GRANT_FAILED"
	CodeAccessRevokeFailed      Code = "ACCESS_REVOKE_FAILED"
	CodeInvalidRequest          Code = "INVALID_REQUEST"
	CodeInternal                Code = "INTERNAL_ERROR"
	CodeCancelled               Code = "REQUEST_CANCELLED"
)

// Error is the failure half of the envelope
type Error struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Metadata describes the request that produced a result
type Metadata struct {
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ArchiveID string    `json:"archiveId,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
}

// Result is the envelope returned by every public operation
type Result[T any] struct {
	Success  bool      `json:"success"`
	Data     T         `json:"data,omitempty"`
	Error    *Error    `json:"error,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// OK wraps data in a successful result
func OK[T any](data T, meta *Metadata) Result[T] {
	return Result[T]{Success: true, Data: data, Metadata: meta}
}

// Fail builds a failed result
func Fail[T any](code Code, message string, details interface{}, meta *Metadata) Result[T] {
	return Result[T]{
		Success:  false,
		Error:    &Error{Code: code, Message: message, Details: details},
		Metadata: meta,
	}
}

// ErrorCode returns the failure code, or "" on success
func (r Result[T]) ErrorCode() Code {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}
