package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "smartdeals-service/internal/domain/campaign"
	xerrors "smartdeals-service/internal/pkg/errors"
	"smartdeals-service/internal/pkg/events"
	"smartdeals-service/internal/pkg/history"
	"smartdeals-service/internal/pkg/lock"

	"go.uber.org/zap"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	campaigns map[int64]*domain.Campaign
	saveErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{campaigns: make(map[int64]*domain.Campaign)}
}

func (r *fakeRepo) Create(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	c.Version = 1
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.DeletedAt.Valid {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.Slug == slug && !c.DeletedAt.Valid {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) Save(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.campaigns[c.ID]; !ok {
		return xerrors.ErrNotFound
	}
	c.Version++
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	c.DeletedAt.Time = at
	c.DeletedAt.Valid = true
	return nil
}

func (r *fakeRepo) HardDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.campaigns, id)
	return nil
}

func (r *fakeRepo) FindByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Campaign
	for id := int64(1); id <= r.nextID; id++ {
		c, ok := r.campaigns[id]
		if !ok || c.DeletedAt.Valid {
			continue
		}
		for _, s := range statuses {
			if c.Status == s {
				cp := *c
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) List(ctx context.Context, filters *domain.ListFilters) ([]domain.Campaign, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for id := int64(1); id <= r.nextID; id++ {
		if c, ok := r.campaigns[id]; ok && !c.DeletedAt.Valid {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) GetStats(ctx context.Context) (*domain.Stats, error) {
	return &domain.Stats{}, nil
}

func (r *fakeRepo) get(id int64) *domain.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id]
}

// fakeJobScheduler records schedule/unschedule calls.
type fakeJobScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time // "hook:id" -> fire time
	failNext  error
}

func newFakeJobScheduler() *fakeJobScheduler {
	return &fakeJobScheduler{scheduled: make(map[string]time.Time)}
}

func (f *fakeJobScheduler) ScheduleSingleAction(ctx context.Context, at time.Time, hook string, campaignID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	key := fmt.Sprintf("%s:%d", hook, campaignID)
	f.scheduled[key] = at
	return key, nil
}

func (f *fakeJobScheduler) UnscheduleAction(ctx context.Context, hook string, campaignID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, fmt.Sprintf("%s:%d", hook, campaignID))
	return nil
}

func (f *fakeJobScheduler) has(hook string, id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[fmt.Sprintf("%s:%d", hook, id)]
	return ok
}

func (f *fakeJobScheduler) at(hook string, id int64) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled[fmt.Sprintf("%s:%d", hook, id)]
}

// recordingDispatcher captures dispatched events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) ofType(t events.Type) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, ev := range d.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeLocker hands out at most one lock at a time.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, lock.ErrNotAcquired
	}
	l.held[key] = true
	return &fakeLock{locker: l, key: key}, nil
}

type fakeLock struct {
	locker *fakeLocker
	key    string
}

func (g *fakeLock) Release(ctx context.Context) error {
	g.locker.mu.Lock()
	defer g.locker.mu.Unlock()
	delete(g.locker.held, g.key)
	return nil
}

// fakeExpiry records Record calls in memory.
type fakeExpiry struct {
	mu      sync.Mutex
	entries []history.ExpiredEntry
}

func (e *fakeExpiry) Record(ctx context.Context, entry history.ExpiredEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append([]history.ExpiredEntry{entry}, e.entries...)
	return nil
}

func (e *fakeExpiry) Recent(ctx context.Context) ([]history.ExpiredEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]history.ExpiredEntry(nil), e.entries...), nil
}

// fakeRegistrar tracks which campaigns have events registered.
type fakeRegistrar struct {
	mu        sync.Mutex
	scheduled map[int64]int
	cleared   map[int64]int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{scheduled: make(map[int64]int), cleared: make(map[int64]int)}
}

func (f *fakeRegistrar) ScheduleCampaignEvents(ctx context.Context, campaignID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[campaignID]++
	return true
}

func (f *fakeRegistrar) ClearCampaignEvents(ctx context.Context, campaignID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared[campaignID]++
}

type testEnv struct {
	repo       *fakeRepo
	jobs       *fakeJobScheduler
	dispatcher *recordingDispatcher
	locker     *fakeLocker
	expiry     *fakeExpiry
	registrar  *fakeRegistrar
	clock      *fixedClock
	sm         *StateManager
	manager    *Manager
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:       newFakeRepo(),
		jobs:       newFakeJobScheduler(),
		dispatcher: &recordingDispatcher{},
		locker:     newFakeLocker(),
		expiry:     &fakeExpiry{},
		registrar:  newFakeRegistrar(),
		clock:      &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	logger := zap.NewNop()
	env.sm = NewStateManager(env.jobs, env.dispatcher, env.clock, logger)
	env.manager = NewManager(env.repo, env.sm, env.locker, env.expiry, env.dispatcher, env.clock, logger)
	env.manager.SetEventScheduler(env.registrar)
	return env
}
