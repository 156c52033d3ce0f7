// internal/service/campaign/interfaces.go
package campaign

import (
	"context"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/pkg/history"
	"smartdeals-service/internal/pkg/lock"
)

// Repository defines the persistence operations the campaign services need.
// Implemented by postgres.CampaignRepository; faked in tests.
type Repository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	FindByID(ctx context.Context, id int64) (*domain.Campaign, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Save(ctx context.Context, c *domain.Campaign) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	HardDelete(ctx context.Context, id int64) error
	FindByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Campaign, error)
	List(ctx context.Context, filters *domain.ListFilters) ([]domain.Campaign, int64, error)
	GetStats(ctx context.Context) (*domain.Stats, error)
}

// JobScheduler is the one-shot job facility: register a job firing once at an
// absolute instant, or remove a registration. Implemented by jobs.Client.
type JobScheduler interface {
	ScheduleSingleAction(ctx context.Context, at time.Time, hook string, campaignID int64) (string, error)
	UnscheduleAction(ctx context.Context, hook string, campaignID int64) error
}

// Locker hands out short-lived mutual-exclusion locks. Implemented by
// lock.Locker; Acquire returns lock.ErrNotAcquired when already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, error)
}

// EventRegistrar re-derives and registers a campaign's one-shot timers.
// Implemented by the event scheduler; the manager calls it after every
// create/update so timers track the persisted dates.
type EventRegistrar interface {
	ScheduleCampaignEvents(ctx context.Context, campaignID int64) bool
	ClearCampaignEvents(ctx context.Context, campaignID int64)
}

// OccurrenceRegenerator rebuilds the occurrence cache for a recurring parent.
type OccurrenceRegenerator interface {
	Regenerate(ctx context.Context, parent *domain.Campaign) (int, error)
}

// ExpiryRecorder keeps the transient recently-expired list for admin notices.
type ExpiryRecorder interface {
	Record(ctx context.Context, entry history.ExpiredEntry) error
	Recent(ctx context.Context) ([]history.ExpiredEntry, error)
}

// ProductSelector resolves dynamic product selections into concrete IDs.
// The selection logic itself lives outside this service; the core only
// invokes it and persists the result.
type ProductSelector interface {
	SelectProducts(ctx context.Context, c *domain.Campaign) ([]int64, error)
}
