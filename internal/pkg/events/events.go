// internal/pkg/events/events.go
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type identifies a lifecycle event. The set is closed: listeners register
// against these constants, never free-form strings.
type Type string

const (
	TypeCampaignActivated         Type = "scd_campaign_activated"
	TypeCampaignPaused            Type = "scd_campaign_paused"
	TypeCampaignArchived          Type = "scd_campaign_archived"
	TypeCampaignExpired           Type = "scd_campaign_expired"
	TypeCampaignStatusChanged     Type = "scd_campaign_status_changed"
	TypeCampaignStateChanged      Type = "campaign.state_changed"
	TypeCampaignTransitionStarted Type = "campaign.transition_started"
	TypeCampaignEndingSoon        Type = "campaign.ending_soon"
	TypeCampaignRotateDue         Type = "campaign.rotate_products"
)

// Event is the payload delivered to listeners.
type Event struct {
	Type       Type
	CampaignID int64
	FromStatus string
	ToStatus   string
	Reason     string
	ActorID    *int64 // nil for system-driven transitions
	OccurredAt time.Time
}

// Handler consumes a single event. Returned errors are the dispatcher's to
// log; they never propagate to the emitting operation.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher is the fire-and-forget event bus the campaign services publish to.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Bus is an in-memory Dispatcher with per-type listener registration.
// Registration happens at wiring time, before any Dispatch, so reads are
// guarded only against late registrations.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Dispatch delivers ev to every handler registered for its type, in
// registration order. Handler errors are logged and swallowed.
func (b *Bus) Dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	hs := b.handlers[ev.Type]
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, ev); err != nil && b.logger != nil {
			b.logger.Error("event listener failed",
				zap.String("event_type", string(ev.Type)),
				zap.Int64("campaign_id", ev.CampaignID),
				zap.Error(err),
			)
		}
	}
}
