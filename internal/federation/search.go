package federation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/metrics"
	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

type archiveResult struct {
	archive models.ArchiveServer
	studies []models.Study
	err     error
}

// SearchStudies queries every active archive concurrently and merges the
// answers. An archive that fails or times out is left out; the search only
// fails when all of them do.
func (s *Service) SearchStudies(ctx context.Context, criteria models.QueryParams) result.Result[*models.ImagingSearchResult] {
	primary, err := s.registry.Primary()
	if err != nil {
		return result.Fail[*models.ImagingSearchResult](result.CodeNoArchive, err.Error(), nil, s.meta(ctx, ""))
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset := criteria.Offset
	if offset < 0 {
		offset = 0
	}

	// each archive is asked for the rows up to the end of the page plus one,
	// so a further page shows up even when archives honor the limit
	perArchive := criteria
	perArchive.Offset = 0
	perArchive.Limit = offset + limit + 1

	archives := s.registry.List()
	results := s.fanOut(ctx, archives, perArchive)

	var failed []string
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, r.archive.ID)
		}
	}

	if len(failed) == len(results) {
		s.logger.Error().Strs("archives", failed).Msg("Study search failed on every archive")
		return result.Fail[*models.ImagingSearchResult](
			result.CodeSearchFailed,
			"study search failed on every archive",
			criteria,
			s.meta(ctx, primary.ID),
		)
	}

	merged := mergeStudies(primary.ID, results)
	sortStudies(merged)

	// Total counts the distinct studies retrieved, which is at most
	// offset+limit+1 per archive and so a lower bound once HasMore is set
	page := paginate(merged, offset, limit)
	out := &models.ImagingSearchResult{
		Total:          len(merged),
		Studies:        page,
		HasMore:        len(merged) > offset+len(page),
		FailedArchives: failed,
	}

	meta := s.meta(ctx, primary.ID)
	meta.Partial = len(failed) > 0
	return result.OK(out, meta)
}

// fanOut runs one bounded query per archive. The returned slice is in the
// same order as archives.
func (s *Service) fanOut(ctx context.Context, archives []models.ArchiveServer, params models.QueryParams) []archiveResult {
	results := make([]archiveResult, len(archives))

	var wg sync.WaitGroup
	for i, archive := range archives {
		wg.Add(1)
		go func(i int, archive models.ArchiveServer) {
			defer wg.Done()
			studies, err := s.queryArchive(ctx, archive, params)
			results[i] = archiveResult{archive: archive, studies: studies, err: err}
		}(i, archive)
	}
	wg.Wait()

	return results
}

func (s *Service) queryArchive(ctx context.Context, archive models.ArchiveServer, params models.QueryParams) ([]models.Study, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ArchiveTimeout)
	defer cancel()

	start := time.Now()
	adapter, err := s.adapters.GetAdapter(archive)
	if err == nil {
		var studies []models.Study
		studies, err = adapter.FindStudies(ctx, params)
		if err == nil {
			observe(archive.ID, "find_studies", start, nil)
			return studies, nil
		}
	}

	observe(archive.ID, "find_studies", start, err)
	metrics.FanoutFailures.WithLabelValues(archive.ID).Inc()
	s.logger.Warn().
		Err(err).
		Str("archive_id", archive.ID).
		Dur("elapsed", time.Since(start)).
		Msg("Archive dropped from study search")
	return nil, err
}

func observe(archiveID, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ArchiveQueryDuration.
		WithLabelValues(archiveID, operation, outcome).
		Observe(time.Since(start).Seconds())
}

// mergeStudies dedupes by study UID. The primary's copy wins, otherwise the
// first archive in registration order.
func mergeStudies(primaryID string, results []archiveResult) []models.Study {
	ordered := make([]archiveResult, 0, len(results))
	for _, r := range results {
		if r.archive.ID == primaryID {
			ordered = append(ordered, r)
		}
	}
	for _, r := range results {
		if r.archive.ID != primaryID {
			ordered = append(ordered, r)
		}
	}

	seen := make(map[string]struct{})
	var merged []models.Study
	for _, r := range ordered {
		if r.err != nil {
			continue
		}
		for _, study := range r.studies {
			if _, dup := seen[study.StudyInstanceUID]; dup {
				continue
			}
			seen[study.StudyInstanceUID] = struct{}{}
			if study.ArchiveID == "" {
				study.ArchiveID = r.archive.ID
			}
			merged = append(merged, study)
		}
	}
	return merged
}

// sortStudies orders by study date descending, then UID
func sortStudies(studies []models.Study) {
	sort.SliceStable(studies, func(i, j int) bool {
		if studies[i].StudyDate != studies[j].StudyDate {
			return studies[i].StudyDate > studies[j].StudyDate
		}
		return studies[i].StudyInstanceUID < studies[j].StudyInstanceUID
	})
}

func paginate(studies []models.Study, offset, limit int) []models.Study {
	if offset >= len(studies) {
		return []models.Study{}
	}
	end := offset + limit
	if end > len(studies) {
		end = len(studies)
	}
	return studies[offset:end]
}
