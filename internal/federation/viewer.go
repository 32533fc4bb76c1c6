package federation

import (
	"context"
	"net/url"
	"strings"

	"github.com/otcheredev/imaging-gateway/internal/result"
)

// GenerateViewerURL builds the viewer deep link. An empty sessionID omits
// the sessionId parameter.
func GenerateViewerURL(baseURL, studyUID, sessionID string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(baseURL, "/"))
	b.WriteString("/viewer?studyInstanceUIDs=")
	b.WriteString(url.QueryEscape(studyUID))
	if sessionID != "" {
		b.WriteString("&sessionId=")
		b.WriteString(url.QueryEscape(sessionID))
	}
	return b.String()
}

// GetViewerURL resolves the viewer-capable archive and links to the study
func (s *Service) GetViewerURL(ctx context.Context, studyUID, sessionID string) result.Result[string] {
	if err := ctx.Err(); err != nil {
		return result.Fail[string](result.CodeCancelled, err.Error(), nil, s.meta(ctx, ""))
	}

	viewer, err := s.registry.Viewer()
	if err != nil {
		return result.Fail[string](result.CodeNoViewerArchive, err.Error(), nil, s.meta(ctx, ""))
	}

	return result.OK(GenerateViewerURL(viewer.ViewerURL(), studyUID, sessionID), s.meta(ctx, viewer.ID))
}
