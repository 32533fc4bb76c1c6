package adapters

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/otcheredev/imaging-gateway/internal/models"
)

// DICOM JSON attribute tags used by QIDO-RS responses
const (
	tagStudyInstanceUID     = "0020000D"
	tagSeriesInstanceUID    = "0020000E"
	tagSOPInstanceUID       = "00080018"
	tagSOPClassUID          = "00080016"
	tagPatientID            = "00100020"
	tagPatientName          = "00100010"
	tagStudyDate            = "00080020"
	tagStudyTime            = "00080030"
	tagStudyDescription     = "00081030"
	tagAccessionNumber      = "00080050"
	tagReferringPhysician   = "00080090"
	tagModalitiesInStudy    = "00080061"
	tagNumberOfSeries       = "00201206"
	tagNumberOfInstances    = "00201208"
	tagSeriesNumber         = "00200011"
	tagModality             = "00080060"
	tagSeriesDescription    = "0008103E"
	tagBodyPartExamined     = "00180015"
	tagSeriesInstancesCount = "00201209"
	tagInstanceNumber       = "00200013"
	tagNumberOfFrames       = "00280008"
)

type dicomAttribute struct {
	VR    string            `json:"vr"`
	Value []json.RawMessage `json:"Value,omitempty"`
}

// dicomObject is one element of a DICOM JSON array
type dicomObject map[string]dicomAttribute

func (o dicomObject) strings(tag string) []string {
	attr, ok := o[tag]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(attr.Value))
	for _, raw := range attr.Value {
		if v := decodeValue(attr.VR, raw); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func (o dicomObject) str(tag string) string {
	values := o.strings(tag)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (o dicomObject) integer(tag string) int {
	n, err := strconv.Atoi(strings.TrimSpace(o.str(tag)))
	if err != nil {
		return 0
	}
	return n
}

// decodeValue flattens a single DICOM JSON value to a string.
// PN values are objects keyed by representation; IS/US values may be numbers.
func decodeValue(vr string, raw json.RawMessage) string {
	if vr == "PN" {
		var pn struct {
			Alphabetic string `json:"Alphabetic"`
		}
		if err := json.Unmarshal(raw, &pn); err == nil {
			return pn.Alphabetic
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (o dicomObject) toStudy() models.Study {
	return models.Study{
		StudyInstanceUID:   o.str(tagStudyInstanceUID),
		PatientID:          o.str(tagPatientID),
		PatientName:        o.str(tagPatientName),
		StudyDate:          o.str(tagStudyDate),
		StudyTime:          o.str(tagStudyTime),
		StudyDescription:   o.str(tagStudyDescription),
		AccessionNumber:    o.str(tagAccessionNumber),
		ReferringPhysician: o.str(tagReferringPhysician),
		ModalitiesInStudy:  o.strings(tagModalitiesInStudy),
		NumberOfSeries:     o.integer(tagNumberOfSeries),
		NumberOfInstances:  o.integer(tagNumberOfInstances),
	}
}

func (o dicomObject) toSeries() models.Series {
	return models.Series{
		SeriesInstanceUID: o.str(tagSeriesInstanceUID),
		StudyInstanceUID:  o.str(tagStudyInstanceUID),
		SeriesNumber:      o.integer(tagSeriesNumber),
		Modality:          o.str(tagModality),
		SeriesDescription: o.str(tagSeriesDescription),
		BodyPartExamined:  o.str(tagBodyPartExamined),
		NumberOfInstances: o.integer(tagSeriesInstancesCount),
	}
}

func (o dicomObject) toInstance() models.Instance {
	return models.Instance{
		SOPInstanceUID: o.str(tagSOPInstanceUID),
		SOPClassUID:    o.str(tagSOPClassUID),
		InstanceNumber: o.integer(tagInstanceNumber),
		NumberOfFrames: o.integer(tagNumberOfFrames),
	}
}
