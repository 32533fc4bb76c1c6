package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DICOMWebOptions tunes the HTTP client of a DICOMweb adapter
type DICOMWebOptions struct {
	Timeout  time.Duration
	RetryMax int
}

// DefaultDICOMWebOptions are used when the factory is given none
var DefaultDICOMWebOptions = DICOMWebOptions{
	Timeout:  30 * time.Second,
	RetryMax: 2,
}

// DICOMWebAdapter implements ArchiveAdapter for the DICOMweb protocol
type DICOMWebAdapter struct {
	BaseAdapter
	client   *http.Client
	baseURL  string
	username string
	password string
	apiKey   string
}

// NewDICOMWebAdapter creates a new DICOMweb adapter
func NewDICOMWebAdapter(archive models.ArchiveServer, opts DICOMWebOptions) (*DICOMWebAdapter, error) {
	if archive.Host == "" {
		return nil, fmt.Errorf("host is required for DICOMweb connection")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultDICOMWebOptions.Timeout
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = retryLogger{logger: log.With().Str("archive_id", archive.ID).Logger()}

	return &DICOMWebAdapter{
		BaseAdapter: BaseAdapter{archive: archive},
		client:      rc.StandardClient(),
		baseURL:     archive.BaseURL(),
		username:    archive.Username,
		password:    archive.Password,
		apiKey:      archive.APIKey,
	}, nil
}

func (d *DICOMWebAdapter) Capabilities() []string {
	return []string{"QIDO-RS", "WADO-RS"}
}

// FindStudies queries for studies using QIDO-RS
func (d *DICOMWebAdapter) FindStudies(ctx context.Context, params models.QueryParams) ([]models.Study, error) {
	urlParams := url.Values{}
	if params.StudyInstanceUID != "" {
		urlParams.Add("StudyInstanceUID", params.StudyInstanceUID)
	}
	if params.PatientID != "" {
		urlParams.Add("PatientID", params.PatientID)
	}
	if params.PatientName != "" {
		urlParams.Add("PatientName", params.PatientName)
	}
	if params.StudyDate != "" {
		urlParams.Add("StudyDate", params.StudyDate)
	}
	if params.AccessionNumber != "" {
		urlParams.Add("AccessionNumber", params.AccessionNumber)
	}
	if params.Modality != "" {
		urlParams.Add("ModalitiesInStudy", params.Modality)
	}
	if params.StudyDescription != "" {
		urlParams.Add("StudyDescription", params.StudyDescription)
	}
	if params.Limit > 0 {
		urlParams.Add("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		urlParams.Add("offset", strconv.Itoa(params.Offset))
	}

	queryURL := d.baseURL + "/studies"
	if len(urlParams) > 0 {
		queryURL += "?" + urlParams.Encode()
	}

	objects, err := d.query(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	studies := make([]models.Study, 0, len(objects))
	for _, o := range objects {
		studies = append(studies, o.toStudy())
	}
	return d.tagStudies(studies), nil
}

// FindSeries queries for series using QIDO-RS
func (d *DICOMWebAdapter) FindSeries(ctx context.Context, studyUID string) ([]models.Series, error) {
	objects, err := d.query(ctx, StudyResourceURL(d.baseURL, studyUID, "", "")+"/series")
	if err != nil {
		return nil, err
	}

	series := make([]models.Series, 0, len(objects))
	for _, o := range objects {
		s := o.toSeries()
		if s.StudyInstanceUID == "" {
			s.StudyInstanceUID = studyUID
		}
		series = append(series, s)
	}
	return series, nil
}

// FindInstances queries for instances using QIDO-RS
func (d *DICOMWebAdapter) FindInstances(ctx context.Context, studyUID, seriesUID string) ([]models.Instance, error) {
	objects, err := d.query(ctx, StudyResourceURL(d.baseURL, studyUID, seriesUID, "")+"/instances")
	if err != nil {
		return nil, err
	}

	instances := make([]models.Instance, 0, len(objects))
	for _, o := range objects {
		instances = append(instances, o.toInstance())
	}
	return instances, nil
}

// TestConnection tests the archive connection
func (d *DICOMWebAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		ArchiveID:   d.archive.ID,
		LastChecked: start.UTC(),
	}

	// Try to query for studies (empty query to test connection)
	_, err := d.FindStudies(ctx, models.QueryParams{Limit: 1})

	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.IsConnected = false
		status.ErrorMessage = err.Error()
		return status, err
	}

	status.IsConnected = true
	status.Capabilities = d.Capabilities()
	return status, nil
}

// Close closes the adapter
func (d *DICOMWebAdapter) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// query runs a QIDO-RS GET and decodes the DICOM JSON array.
// 204 No Content is an empty match.
func (d *DICOMWebAdapter) query(ctx context.Context, queryURL string) ([]dicomObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	d.addAuth(req)
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	var objects []dicomObject
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return objects, nil
}

// addAuth adds authentication to the request
func (d *DICOMWebAdapter) addAuth(req *http.Request) {
	if d.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.apiKey))
	} else if d.username != "" && d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
}

// retryLogger routes retryablehttp's leveled logging into zerolog
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.event(l.logger.Error(), msg, kv) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.event(l.logger.Warn(), msg, kv) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.event(l.logger.Debug(), msg, kv) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.event(l.logger.Debug(), msg, kv) }

func (l retryLogger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case *http.Request:
			e = e.Str(key, v.URL.String())
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
