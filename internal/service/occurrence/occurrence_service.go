// internal/service/occurrence/occurrence_service.go
package occurrence

import (
	"context"
	"fmt"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	occ "smartdeals-service/internal/domain/occurrence"
	xerrors "smartdeals-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const (
	// horizonDays bounds how far ahead occurrences are pre-computed.
	horizonDays = 90
	// maxOccurrencesPerRun caps one regeneration batch.
	maxOccurrencesPerRun = 100
)

// Repository is the persistence surface for the occurrence cache.
type Repository interface {
	DeletePending(ctx context.Context, campaignID int64) (int64, error)
	MaxOccurrenceNumber(ctx context.Context, campaignID int64) (int, error)
	NonPendingStarts(ctx context.Context, campaignID int64) ([]time.Time, error)
	BulkInsert(ctx context.Context, entries []*occ.Entry) error
	FindDue(ctx context.Context, until time.Time, limit int) ([]*occ.Entry, error)
	MarkMaterialized(ctx context.Context, id, instanceCampaignID int64) error
	MarkFailed(ctx context.Context, id int64, msg string) error
	CountByStatus(ctx context.Context, campaignID int64, status occ.Status) (int64, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Service maintains the occurrence cache for recurring parent campaigns:
// future runs are pre-computed into rows a materializer later turns into
// real campaign instances.
type Service struct {
	repo   Repository
	clock  Clock
	logger *zap.Logger
}

func NewService(repo Repository, clk Clock, logger *zap.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

// Regenerate replaces the parent's pending occurrences with a freshly
// computed set. The series starts one interval past the parent's own window,
// so the parent is always run zero and never doubles up with its first
// occurrence. Materialized and failed rows are untouched, and numbering
// continues past the highest number ever assigned so instance names stay
// stable across regenerations. For the after_occurrences end condition the
// budget counts calendar slots, including slots already in the past, so a
// limit of 5 means the first 5 slots of the series rather than 5 future
// runs. Returns how many entries were written.
func (s *Service) Regenerate(ctx context.Context, parent *domain.Campaign) (int, error) {
	cfg := parent.RecurringConfig
	if !parent.EnableRecurring || cfg == nil {
		// Recurrence switched off: drop any stale pending rows.
		if _, err := s.repo.DeletePending(ctx, parent.ID); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	if !parent.StartsAt.Valid {
		return 0, fmt.Errorf("%w: recurring campaign requires starts_at", xerrors.ErrInvalidInput)
	}

	duration, ok := s.occurrenceDuration(parent)
	if !ok {
		// Non-fatal: the parent simply has no cacheable occurrences yet.
		return 0, nil
	}
	if duration < 0 {
		return 0, fmt.Errorf("%w: ends_at precedes starts_at", xerrors.ErrInvalidInput)
	}

	// Read the high-water mark before deleting: the pending rows about to go
	// hold numbers that must never come back.
	lastNumber, err := s.repo.MaxOccurrenceNumber(ctx, parent.ID)
	if err != nil {
		return 0, err
	}

	taken, err := s.repo.NonPendingStarts(ctx, parent.ID)
	if err != nil {
		return 0, err
	}
	occupied := make(map[int64]struct{}, len(taken))
	for _, t := range taken {
		occupied[t.Unix()] = struct{}{}
	}

	if _, err := s.repo.DeletePending(ctx, parent.ID); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	horizon := now.AddDate(0, 0, horizonDays)

	entries := make([]*occ.Entry, 0, maxOccurrencesPerRun)
	cursor := advance(parent.StartsAt.Time, cfg)
	if parent.EndsAt.Valid {
		// A run longer than the interval could still overlap the parent's
		// own window; step until the series is strictly past it.
		for !cursor.After(parent.EndsAt.Time) {
			cursor = advance(cursor, cfg)
		}
	}
	number := 0

	for len(entries) < maxOccurrencesPerRun && !cursor.After(horizon) {
		number++
		if cfg.EndCondition == domain.RecurrenceEndAfterN && number > cfg.MaxOccurrences {
			break
		}
		if cfg.EndCondition == domain.RecurrenceEndOnDate && cfg.EndDate != nil && cursor.After(cfg.EndDate.UTC()) {
			break
		}

		// Skip run dates already in the past and slots a previous run has
		// already materialized or failed; the sequence position is still
		// consumed so numbering matches the calendar.
		_, held := occupied[cursor.Unix()]
		if !cursor.Before(now) && !held {
			entries = append(entries, &occ.Entry{
				CampaignID:       parent.ID,
				OccurrenceNumber: lastNumber + number,
				StartsAt:         cursor,
				EndsAt:           cursor.Add(duration),
				Status:           occ.StatusPending,
			})
		}

		cursor = advance(cursor, cfg)
	}

	if err := s.repo.BulkInsert(ctx, entries); err != nil {
		return 0, err
	}

	s.logger.Info("occurrence cache regenerated",
		zap.Int64("campaign_id", parent.ID),
		zap.Int("entries", len(entries)),
		zap.String("pattern", string(cfg.Pattern)),
	)
	return len(entries), nil
}

// GetDueOccurrences returns pending entries whose start falls within the
// lookahead window, earliest first.
func (s *Service) GetDueOccurrences(ctx context.Context, lookahead time.Duration, limit int) ([]*occ.Entry, error) {
	if limit <= 0 {
		limit = maxOccurrencesPerRun
	}
	return s.repo.FindDue(ctx, s.clock.Now().Add(lookahead), limit)
}

// MarkMaterialized records that the entry became a live campaign instance.
func (s *Service) MarkMaterialized(ctx context.Context, entryID, instanceCampaignID int64) error {
	return s.repo.MarkMaterialized(ctx, entryID, instanceCampaignID)
}

// MarkFailed records a materialization failure for later inspection.
func (s *Service) MarkFailed(ctx context.Context, entryID int64, cause error) error {
	return s.repo.MarkFailed(ctx, entryID, cause.Error())
}

// PendingCount reports how many pending entries a parent currently has.
func (s *Service) PendingCount(ctx context.Context, campaignID int64) (int64, error) {
	return s.repo.CountByStatus(ctx, campaignID, occ.StatusPending)
}

// occurrenceDuration derives each run's length: the parent's own window when
// both boundaries are set, otherwise the configured duration. Reports false
// when neither source yields one.
func (s *Service) occurrenceDuration(parent *domain.Campaign) (time.Duration, bool) {
	if parent.StartsAt.Valid && parent.EndsAt.Valid {
		return parent.EndsAt.Time.Sub(parent.StartsAt.Time), true
	}
	if secs := parent.RecurringConfig.DurationSeconds; secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	s.logger.Warn("recurring campaign has no derivable occurrence duration",
		zap.Int64("campaign_id", parent.ID))
	return 0, false
}

func validateConfig(cfg *domain.RecurringConfig) error {
	switch cfg.Pattern {
	case domain.RecurrenceDaily, domain.RecurrenceWeekly, domain.RecurrenceMonthly:
	default:
		return fmt.Errorf("%w: unknown recurrence pattern %q", xerrors.ErrInvalidInput, cfg.Pattern)
	}
	if cfg.Interval < 1 {
		return fmt.Errorf("%w: recurrence interval must be at least 1", xerrors.ErrInvalidInput)
	}
	if cfg.EndCondition == domain.RecurrenceEndAfterN && cfg.MaxOccurrences < 1 {
		return fmt.Errorf("%w: after_occurrences requires max_occurrences", xerrors.ErrInvalidInput)
	}
	if cfg.EndCondition == domain.RecurrenceEndOnDate && cfg.EndDate == nil {
		return fmt.Errorf("%w: on_date requires end_date", xerrors.ErrInvalidInput)
	}
	return nil
}

// advance steps the cursor by one recurrence interval using calendar
// arithmetic, so monthly recurrences land on the same day-of-month and
// daylight-saving shifts are absorbed by AddDate.
func advance(cursor time.Time, cfg *domain.RecurringConfig) time.Time {
	switch cfg.Pattern {
	case domain.RecurrenceDaily:
		return cursor.AddDate(0, 0, cfg.Interval)
	case domain.RecurrenceWeekly:
		return cursor.AddDate(0, 0, 7*cfg.Interval)
	case domain.RecurrenceMonthly:
		return cursor.AddDate(0, cfg.Interval, 0)
	}
	return cursor
}
