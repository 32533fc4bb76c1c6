package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OtchereDev/ris-common-sdk/pkg/io-dicom/dictionary/tags"
	"github.com/OtchereDev/ris-common-sdk/pkg/io-dicom/media"
	"github.com/OtchereDev/ris-common-sdk/pkg/io-dicom/network"
	"github.com/OtchereDev/ris-common-sdk/pkg/io-dicom/services"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/rs/zerolog/log"
)

// DIMSE timeout constants (in seconds)
const (
	TimeoutCEcho = 10
	TimeoutCFind = 120
)

// CallingAETitle is the AE title this gateway presents to archives
const CallingAETitle = "IMAGING_GATEWAY"

// DIMSEAdapter implements ArchiveAdapter for the DIMSE protocol using the SDK
type DIMSEAdapter struct {
	BaseAdapter
	destination *network.Destination
}

// NewDIMSEAdapter creates a new DIMSE adapter
func NewDIMSEAdapter(archive models.ArchiveServer) (*DIMSEAdapter, error) {
	if archive.AETitle == "" {
		return nil, fmt.Errorf("AE Title (Called AE) is required for DIMSE connection")
	}
	if archive.Host == "" {
		return nil, fmt.Errorf("host is required for DIMSE connection")
	}
	if archive.Port == 0 {
		return nil, fmt.Errorf("port is required for DIMSE connection")
	}

	destination := &network.Destination{
		HostName:  archive.Host,
		Port:      archive.Port,
		CalledAE:  archive.AETitle,
		CallingAE: CallingAETitle,
		IsCFind:   true,
		IsCMove:   false,
		IsCStore:  false,
	}

	log.Info().
		Str("archive_id", archive.ID).
		Str("host", archive.Host).
		Int("port", archive.Port).
		Str("called_ae", archive.AETitle).
		Msg("Created DIMSE adapter")

	return &DIMSEAdapter{
		BaseAdapter: BaseAdapter{archive: archive},
		destination: destination,
	}, nil
}

func (d *DIMSEAdapter) Capabilities() []string {
	return []string{"C-FIND", "C-ECHO"}
}

// TestConnection tests the archive connection using C-ECHO
func (d *DIMSEAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		ArchiveID:   d.archive.ID,
		LastChecked: start.UTC(),
	}

	err := runWithContext(ctx, func() error {
		return services.NewSCU(d.destination).EchoSCU(TimeoutCEcho)
	})

	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.ErrorMessage = fmt.Sprintf("C-ECHO failed: %v", err)
		log.Warn().
			Err(err).
			Str("archive_id", d.archive.ID).
			Int64("response_time_ms", status.ResponseTime).
			Msg("DIMSE C-ECHO failed")
		return status, err
	}

	status.IsConnected = true
	status.Capabilities = d.Capabilities()
	return status, nil
}

// FindStudies queries for studies using C-FIND at STUDY level
func (d *DIMSEAdapter) FindStudies(ctx context.Context, params models.QueryParams) ([]models.Study, error) {
	query := media.NewEmptyDCMObj()
	query.WriteString(tags.QueryRetrieveLevel, "STUDY")

	// Empty string is a universal match
	query.WriteString(tags.StudyInstanceUID, params.StudyInstanceUID)
	query.WriteString(tags.PatientID, params.PatientID)
	query.WriteString(tags.PatientName, params.PatientName)
	query.WriteString(tags.StudyDate, params.StudyDate)
	query.WriteString(tags.AccessionNumber, params.AccessionNumber)
	query.WriteString(tags.ModalitiesInStudy, params.Modality)
	if params.StudyDescription != "" {
		query.WriteString(tags.StudyDescription, params.StudyDescription)
	}

	// Return keys
	query.WriteString(tags.StudyTime, "")
	query.WriteString(tags.ReferringPhysicianName, "")
	query.WriteString(tags.NumberOfStudyRelatedSeries, "")
	query.WriteString(tags.NumberOfStudyRelatedInstances, "")

	var studies []models.Study
	err := d.find(ctx, "studies", query, func(result media.DcmObj) {
		studies = append(studies, dicomToStudy(result))
	})
	if err != nil {
		return nil, err
	}

	// C-FIND has no paging, apply it here
	return d.tagStudies(PageStudies(studies, params.Offset, params.Limit)), nil
}

// PageStudies applies offset and limit to an unpaged match list. A limit of
// zero or less keeps everything after offset.
func PageStudies(studies []models.Study, offset, limit int) []models.Study {
	if offset > 0 {
		if offset >= len(studies) {
			return nil
		}
		studies = studies[offset:]
	}
	if limit > 0 && len(studies) > limit {
		studies = studies[:limit]
	}
	return studies
}

// FindSeries queries for series using C-FIND at SERIES level
func (d *DIMSEAdapter) FindSeries(ctx context.Context, studyUID string) ([]models.Series, error) {
	query := media.NewEmptyDCMObj()
	query.WriteString(tags.QueryRetrieveLevel, "SERIES")
	query.WriteString(tags.StudyInstanceUID, studyUID)
	query.WriteString(tags.SeriesInstanceUID, "")
	query.WriteString(tags.SeriesNumber, "")
	query.WriteString(tags.Modality, "")
	query.WriteString(tags.SeriesDescription, "")
	query.WriteString(tags.NumberOfSeriesRelatedInstances, "")

	var series []models.Series
	err := d.find(ctx, "series", query, func(result media.DcmObj) {
		s := dicomToSeries(result)
		s.StudyInstanceUID = studyUID
		series = append(series, s)
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// FindInstances queries for instances using C-FIND at IMAGE level
func (d *DIMSEAdapter) FindInstances(ctx context.Context, studyUID, seriesUID string) ([]models.Instance, error) {
	query := media.NewEmptyDCMObj()
	query.WriteString(tags.QueryRetrieveLevel, "IMAGE")
	query.WriteString(tags.StudyInstanceUID, studyUID)
	query.WriteString(tags.SeriesInstanceUID, seriesUID)
	query.WriteString(tags.SOPInstanceUID, "")
	query.WriteString(tags.SOPClassUID, "")
	query.WriteString(tags.InstanceNumber, "")
	query.WriteString(tags.NumberOfFrames, "")

	var instances []models.Instance
	err := d.find(ctx, "instances", query, func(result media.DcmObj) {
		instances = append(instances, dicomToInstance(result))
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// Close closes the adapter (associations are per call)
func (d *DIMSEAdapter) Close() error {
	return nil
}

// find executes one C-FIND and feeds every match to onResult
func (d *DIMSEAdapter) find(ctx context.Context, level string, query media.DcmObj, onResult func(media.DcmObj)) error {
	scu := services.NewSCU(d.destination)
	scu.SetOnCFindResult(onResult)

	start := time.Now()
	var status uint16
	var numResults int
	err := runWithContext(ctx, func() error {
		var err error
		numResults, status, err = scu.FindSCU(query, TimeoutCFind)
		return err
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("archive_id", d.archive.ID).
			Str("level", level).
			Dur("duration", duration).
			Msg("C-FIND failed")
		return fmt.Errorf("C-FIND failed: %w", err)
	}

	// Status 0x0000 = Success
	if status != 0x0000 {
		return fmt.Errorf("C-FIND completed with status: 0x%04X", status)
	}

	log.Debug().
		Int("num_results", numResults).
		Str("archive_id", d.archive.ID).
		Str("level", level).
		Dur("duration", duration).
		Msg("C-FIND completed")
	return nil
}

// runWithContext runs a blocking SDK call and returns early when ctx ends.
// The call itself is bounded by its own DIMSE timeout.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dicomToStudy(dcmObj media.DcmObj) models.Study {
	return models.Study{
		StudyInstanceUID:   dcmObj.GetString(tags.StudyInstanceUID),
		PatientID:          dcmObj.GetString(tags.PatientID),
		PatientName:        dcmObj.GetString(tags.PatientName),
		StudyDate:          dcmObj.GetString(tags.StudyDate),
		StudyTime:          dcmObj.GetString(tags.StudyTime),
		StudyDescription:   dcmObj.GetString(tags.StudyDescription),
		AccessionNumber:    dcmObj.GetString(tags.AccessionNumber),
		ReferringPhysician: dcmObj.GetString(tags.ReferringPhysicianName),
		NumberOfSeries:     atoi(dcmObj.GetString(tags.NumberOfStudyRelatedSeries)),
		NumberOfInstances:  atoi(dcmObj.GetString(tags.NumberOfStudyRelatedInstances)),
		ModalitiesInStudy:  splitMultiValue(dcmObj.GetString(tags.ModalitiesInStudy)),
	}
}

func dicomToSeries(dcmObj media.DcmObj) models.Series {
	return models.Series{
		SeriesInstanceUID: dcmObj.GetString(tags.SeriesInstanceUID),
		SeriesNumber:      atoi(dcmObj.GetString(tags.SeriesNumber)),
		Modality:          dcmObj.GetString(tags.Modality),
		SeriesDescription: dcmObj.GetString(tags.SeriesDescription),
		NumberOfInstances: atoi(dcmObj.GetString(tags.NumberOfSeriesRelatedInstances)),
	}
}

func dicomToInstance(dcmObj media.DcmObj) models.Instance {
	return models.Instance{
		SOPInstanceUID: dcmObj.GetString(tags.SOPInstanceUID),
		SOPClassUID:    dcmObj.GetString(tags.SOPClassUID),
		InstanceNumber: atoi(dcmObj.GetString(tags.InstanceNumber)),
		NumberOfFrames: atoi(dcmObj.GetString(tags.NumberOfFrames)),
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// splitMultiValue splits a backslash-delimited DICOM multi-value
func splitMultiValue(s string) []string {
	if s == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(s, `\`) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
