package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStudyResourceURL(t *testing.T) {
	base := "http://pacs:8042/dicom-web/"

	tests := []struct {
		name                    string
		study, series, instance string
		want                    string
	}{
		{"base only", "", "", "", "http://pacs:8042/dicom-web"},
		{"study", "1.2", "", "", "http://pacs:8042/dicom-web/studies/1.2"},
		{"series", "1.2", "1.2.3", "", "http://pacs:8042/dicom-web/studies/1.2/series/1.2.3"},
		{"instance", "1.2", "1.2.3", "1.2.3.4", "http://pacs:8042/dicom-web/studies/1.2/series/1.2.3/instances/1.2.3.4"},
		{"series without study", "", "1.2.3", "", "http://pacs:8042/dicom-web"},
		{"instance without series", "1.2", "", "1.2.3.4", "http://pacs:8042/dicom-web/studies/1.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StudyResourceURL(base, tt.study, tt.series, tt.instance))
		})
	}
}

func TestSplitMultiValueTrailingSeparator(t *testing.T) {
	assert.Nil(t, splitMultiValue(""))
	assert.Equal(t, []string{"CT", "MR"}, splitMultiValue(`CT\MR\`))
}
