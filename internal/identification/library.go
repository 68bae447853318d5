package identification

import (
	"context"
	"errors"
	"fmt"

	"komf/internal/jobs"
	"komf/internal/logging"
)

const libraryPageSize = 500

var errScanStopped = errors.New("library scan stopped")

// ScanSummary reports the outcome of a library scan.
type ScanSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// MatchLibrary checks that the library exists and scans it in the
// background. The scan outlives ctx and ends early on Shutdown.
func (s *Service) MatchLibrary(ctx context.Context, libraryID string) error {
	if s.root.Err() != nil {
		return jobs.ErrTrackerClosed
	}
	if _, err := s.server.GetLibrary(ctx, libraryID); err != nil {
		return err
	}
	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.root, cancel)
	s.scans.Add(1)
	go func() {
		defer s.scans.Done()
		defer stop()
		defer cancel()
		_, err := s.ScanLibrary(scanCtx, libraryID)
		if errors.Is(err, errScanStopped) {
			s.logger.Info("library scan stopped by shutdown",
				logging.String(logging.FieldLibraryID, libraryID),
				logging.String(logging.FieldEventType, "library_scan_stopped"),
			)
			return
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "library scan aborted", "library_scan_failed",
				logging.String(logging.FieldLibraryID, libraryID),
				logging.Error(err),
			)
			if s.notifier != nil && s.cfg.Notifications.Errors {
				_ = s.notifier.NotifyError(scanCtx, err, "library scan")
			}
		}
	}()
	return nil
}

// ScanLibrary matches every series of a library, one job at a time. Series
// failures are counted and never stop the scan; only listing failures and
// cancellation do. A cancelled scan sends no completion notification.
func (s *Service) ScanLibrary(ctx context.Context, libraryID string) (ScanSummary, error) {
	library, err := s.server.GetLibrary(ctx, libraryID)
	if err != nil {
		return ScanSummary{}, err
	}
	logger := s.logger.With(logging.String(logging.FieldLibraryID, libraryID))
	logger.Info("library scan started", logging.String("library", library.Name), logging.String(logging.FieldEventType, "library_scan_started"))

	var summary ScanSummary
	for page := 0; ; page++ {
		if ctx.Err() != nil {
			return summary, errScanStopped
		}
		result, err := s.server.ListSeries(ctx, libraryID, page, libraryPageSize)
		if err != nil {
			if ctx.Err() != nil {
				return summary, errScanStopped
			}
			return summary, fmt.Errorf("list series of library %s: %w", libraryID, err)
		}
		for _, series := range result.Content {
			if ctx.Err() != nil {
				return summary, errScanStopped
			}
			err := s.matchAndWait(ctx, series.ID)
			if ctx.Err() != nil || errors.Is(err, jobs.ErrTrackerClosed) {
				return summary, errScanStopped
			}
			summary.Processed++
			if err != nil {
				summary.Failed++
				logging.WarnWithContext(logger, "series match failed", "series_match_failed",
					logging.String(logging.FieldSeriesID, series.ID),
					logging.Error(err),
				)
			}
		}
		if result.Last() || len(result.Content) == 0 {
			break
		}
	}

	logger.Info("library scan completed",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "library_scan_completed"),
	)
	if s.notifier != nil && s.cfg.Notifications.LibraryScan {
		if err := s.notifier.NotifyLibraryScanCompleted(ctx, library.Name, summary.Processed, summary.Failed); err != nil {
			logging.WarnWithContext(logger, "library scan notification failed", "notification_failed", logging.Error(err))
		}
	}
	return summary, nil
}

func (s *Service) matchAndWait(ctx context.Context, seriesID string) error {
	job, err := s.Match(ctx, seriesID)
	if err != nil {
		return err
	}
	if events, err := s.jobs.Subscribe(ctx, job.ID); err == nil {
		for range events {
		}
	} else if !errors.Is(err, jobs.ErrStreamNotFound) {
		return err
	}
	final, err := s.jobs.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	if final.Status == jobs.StatusFailed {
		return errors.New(final.Message)
	}
	return nil
}

// ResetSeries clears metadata written to a series and forgets its sticky
// match.
func (s *Service) ResetSeries(ctx context.Context, seriesID string) error {
	series, err := s.server.GetSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if err := s.updater.ResetSeries(ctx, series); err != nil {
		return err
	}
	if err := s.matches.DeleteSeriesMatch(ctx, seriesID); err != nil {
		return fmt.Errorf("delete series match: %w", err)
	}
	return nil
}

// ResetLibrary resets every series of a library and returns how many
// series failed.
func (s *Service) ResetLibrary(ctx context.Context, libraryID string) (int, error) {
	if _, err := s.server.GetLibrary(ctx, libraryID); err != nil {
		return 0, err
	}
	failed, err := s.updater.ResetLibrary(ctx, libraryID)
	if err != nil {
		return failed, err
	}
	if failed > 0 {
		s.logger.Warn("library reset finished with failures",
			logging.String(logging.FieldLibraryID, libraryID),
			logging.Int("failed", failed),
			logging.String(logging.FieldEventType, "library_reset_partial"),
			logging.String(logging.FieldErrorHint, "check the media server logs for the failing series"),
		)
	}
	return failed, nil
}
