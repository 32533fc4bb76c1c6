package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/internal/result"
)

// TestConnection checks an archive and records the outcome
func (s *Service) TestConnection(ctx context.Context, archiveID string) result.Result[*models.ConnectionStatus] {
	archive, err := s.registry.Find(archiveID)
	if err != nil {
		return result.Fail[*models.ConnectionStatus](
			result.CodeServerNotFound,
			err.Error(),
			map[string]string{"archiveId": archiveID},
			s.meta(ctx, archiveID),
		)
	}

	start := time.Now()
	status, err := s.check(ctx, archive)
	observe(archive.ID, "test_connection", start, err)

	if s.statuses != nil {
		if perr := s.statuses.UpdateConnectionStatus(ctx, archive.ID, status); perr != nil {
			s.logger.Warn().Err(perr).Str("archive_id", archive.ID).Msg("Failed to persist connection status")
		}
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("archive_id", archive.ID).Msg("Connection test failed")
		return result.Fail[*models.ConnectionStatus](result.CodeConnectionFailed, err.Error(), status, s.meta(ctx, archive.ID))
	}

	s.logger.Info().
		Str("archive_id", archive.ID).
		Int64("response_time_ms", status.ResponseTime).
		Msg("Connection test succeeded")
	return result.OK(status, s.meta(ctx, archive.ID))
}

// check always returns a status, even on failure
func (s *Service) check(ctx context.Context, archive models.ArchiveServer) (*models.ConnectionStatus, error) {
	fallback := &models.ConnectionStatus{ArchiveID: archive.ID, LastChecked: s.clock.Now()}

	adapter, err := s.adapters.GetAdapter(archive)
	if err != nil {
		fallback.ErrorMessage = err.Error()
		return fallback, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ArchiveTimeout)
	defer cancel()

	status, err := adapter.TestConnection(ctx)
	if status == nil {
		status = fallback
	}
	status.ArchiveID = archive.ID
	if err == nil && !status.IsConnected {
		err = fmt.Errorf("archive %s is not reachable", archive.ID)
	}
	if err != nil && status.ErrorMessage == "" {
		status.ErrorMessage = err.Error()
	}
	return status, err
}
