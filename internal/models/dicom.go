package models

// QueryParams represents study search criteria
type QueryParams struct {
	StudyInstanceUID string `json:"studyInstanceUid,omitempty"`
	PatientID        string `json:"patientId,omitempty"`
	PatientName      string `json:"patientName,omitempty"`
	StudyDate        string `json:"studyDate,omitempty"`
	AccessionNumber  string `json:"accessionNumber,omitempty"`
	Modality         string `json:"modality,omitempty"`
	StudyDescription string `json:"studyDescription,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	Offset           int    `json:"offset,omitempty"`
}

// Study represents a DICOM study. NumberOfSeries and NumberOfInstances are
// the counts the archive declared, not a count of Series.
type Study struct {
	StudyInstanceUID   string   `json:"studyInstanceUid"`
	PatientID          string   `json:"patientId"`
	PatientName        string   `json:"patientName"`
	StudyDate          string   `json:"studyDate,omitempty"`
	StudyTime          string   `json:"studyTime,omitempty"`
	StudyDescription   string   `json:"studyDescription,omitempty"`
	AccessionNumber    string   `json:"accessionNumber,omitempty"`
	ReferringPhysician string   `json:"referringPhysician,omitempty"`
	ModalitiesInStudy  []string `json:"modalities,omitempty"`
	NumberOfSeries     int      `json:"numberOfSeries"`
	NumberOfInstances  int      `json:"numberOfInstances"`
	Series             []Series `json:"series,omitempty"`
	ArchiveID          string   `json:"archiveId,omitempty"`
}

// Series represents a DICOM series
type Series struct {
	SeriesInstanceUID string     `json:"seriesInstanceUid"`
	StudyInstanceUID  string     `json:"studyInstanceUid"`
	SeriesNumber      int        `json:"seriesNumber"`
	Modality          string     `json:"modality"`
	SeriesDescription string     `json:"seriesDescription,omitempty"`
	BodyPartExamined  string     `json:"bodyPartExamined,omitempty"`
	NumberOfInstances int        `json:"numberOfInstances"`
	Instances         []Instance `json:"instances,omitempty"`
}

// Instance represents a single DICOM image
type Instance struct {
	SOPInstanceUID string `json:"sopInstanceUid"`
	SOPClassUID    string `json:"sopClassUid,omitempty"`
	InstanceNumber int    `json:"instanceNumber"`
	NumberOfFrames int    `json:"numberOfFrames,omitempty"`
}

// ImagingSearchResult is one page of a study search
type ImagingSearchResult struct {
	Total          int      `json:"total"`
	Studies        []Study  `json:"studies"`
	HasMore        bool     `json:"hasMore"`
	FailedArchives []string `json:"failedArchives,omitempty"`
}
