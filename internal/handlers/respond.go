package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// StatusFor maps a result code to an HTTP status
func StatusFor(code result.Code) int {
	switch {
	case code == "":
		return http.StatusOK
	case strings.HasSuffix(string(code), "_NOT_FOUND"):
		return http.StatusNotFound
	case code == result.CodeAccessDenied:
		return http.StatusForbidden
	case code == result.CodeNoArchive, code == result.CodeNoViewerArchive, code == result.CodeConnectionFailed:
		return http.StatusServiceUnavailable
	case code == result.CodeInvalidRequest:
		return http.StatusBadRequest
	case code == result.CodeCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeResult renders the envelope, using okStatus on success
func writeResult[T any](w http.ResponseWriter, r *http.Request, res result.Result[T], okStatus int) {
	status := okStatus
	if !res.Success {
		status = StatusFor(res.ErrorCode())
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeResult(w, r, result.Fail[any](
		result.CodeInvalidRequest,
		message,
		nil,
		result.NewMetadata(r.Context(), time.Now().UTC(), ""),
	), http.StatusBadRequest)
}

// decode reads a JSON body into v, rejecting unknown fields
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
