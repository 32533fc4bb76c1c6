package adapters

import (
	"net/url"
	"strings"
)

// StudyResourceURL addresses a study, series or instance below baseURL.
// Nesting only goes deeper when the enclosing identifier is present.
func StudyResourceURL(baseURL, studyUID, seriesUID, instanceUID string) string {
	u := strings.TrimSuffix(baseURL, "/")
	if studyUID == "" {
		return u
	}
	u += "/studies/" + url.PathEscape(studyUID)
	if seriesUID == "" {
		return u
	}
	u += "/series/" + url.PathEscape(seriesUID)
	if instanceUID == "" {
		return u
	}
	return u + "/instances/" + url.PathEscape(instanceUID)
}
