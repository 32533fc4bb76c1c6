package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/cache"
	"github.com/otcheredev/imaging-gateway/internal/metrics"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

var errStudyNotFound = errors.New("study not found on archive")

// GetStudyDetails assembles a study with its series and instances from the
// primary archive
func (s *Service) GetStudyDetails(ctx context.Context, studyUID string) result.Result[*models.Study] {
	primary, err := s.registry.Primary()
	if err != nil {
		return result.Fail[*models.Study](result.CodeNoArchive, err.Error(), nil, s.meta(ctx, ""))
	}

	key := cache.StudyKey(primary.ID, studyUID, "", "details")
	if study, ok := s.cachedStudy(ctx, key); ok {
		return result.OK(study, s.meta(ctx, primary.ID))
	}

	start := time.Now()
	study, err := s.fetchStudy(ctx, primary, studyUID)
	observe(primary.ID, "get_study", start, err)

	entry := models.AuditLog{
		Action:       models.AuditStudyRetrieved,
		ResourceType: "study",
		ResourceUID:  studyUID,
		ArchiveID:    primary.ID,
		Status:       "success",
		Duration:     time.Since(start).Milliseconds(),
	}

	if err != nil {
		s.logger.Error().Err(err).Str("study_uid", studyUID).Str("archive_id", primary.ID).Msg("Study retrieval failed")
		entry.Status = "failure"
		entry.ErrorMessage = err.Error()
		s.record(ctx, entry)
		return result.Fail[*models.Study](
			result.CodeStudyRetrievalFailed,
			err.Error(),
			map[string]string{"studyInstanceUid": studyUID},
			s.meta(ctx, primary.ID),
		)
	}

	entry.PatientID = study.PatientID
	s.record(ctx, entry)
	s.storeStudy(ctx, key, study)

	return result.OK(study, s.meta(ctx, primary.ID))
}

func (s *Service) fetchStudy(ctx context.Context, archive models.ArchiveServer, studyUID string) (*models.Study, error) {
	adapter, err := s.adapters.GetAdapter(archive)
	if err != nil {
		return nil, err
	}

	studies, err := adapter.FindStudies(ctx, models.QueryParams{StudyInstanceUID: studyUID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to find study: %w", err)
	}

	var study *models.Study
	for i := range studies {
		if studies[i].StudyInstanceUID == studyUID {
			study = &studies[i]
			break
		}
	}
	if study == nil {
		return nil, fmt.Errorf("%s: %w", studyUID, errStudyNotFound)
	}
	if study.ArchiveID == "" {
		study.ArchiveID = archive.ID
	}

	series, err := adapter.FindSeries(ctx, studyUID)
	if err != nil {
		return nil, fmt.Errorf("failed to find series: %w", err)
	}

	for i := range series {
		instances, err := adapter.FindInstances(ctx, studyUID, series[i].SeriesInstanceUID)
		if err != nil {
			return nil, fmt.Errorf("failed to find instances of series %s: %w", series[i].SeriesInstanceUID, err)
		}
		series[i].Instances = instances
	}
	study.Series = series

	return study, nil
}

func (s *Service) cachedStudy(ctx context.Context, key string) (*models.Study, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Study cache read failed")
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var study models.Study
	if err := json.Unmarshal(data, &study); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &study, true
}

func (s *Service) storeStudy(ctx context.Context, key string, study *models.Study) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(study)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.opts.StudyCacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Study cache write failed")
	}
}
