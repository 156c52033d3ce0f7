// internal/domain/campaign/entity.go
package campaign

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type DiscountType string

const (
	DiscountTypePercentage     DiscountType = "percentage"
	DiscountTypeFixed          DiscountType = "fixed"
	DiscountTypeBOGO           DiscountType = "bogo"
	DiscountTypeTiered         DiscountType = "tiered"
	DiscountTypeSpendThreshold DiscountType = "spend_threshold"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
	StatusArchived  Status = "archived"
)

type SelectionType string

const (
	SelectionAllProducts      SelectionType = "all_products"
	SelectionSpecificProducts SelectionType = "specific_products"
	SelectionRandomProducts   SelectionType = "random_products"
	SelectionSmartSelection   SelectionType = "smart_selection"
)

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

type RecurrenceEnd string

const (
	RecurrenceEndNever  RecurrenceEnd = "never"
	RecurrenceEndAfterN RecurrenceEnd = "after_occurrences"
	RecurrenceEndOnDate RecurrenceEnd = "on_date"
)

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Condition is one product-filter predicate (price range, stock status, ...).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// RecurringConfig describes how a recurring parent campaign repeats.
type RecurringConfig struct {
	Pattern         RecurrencePattern `json:"pattern"`
	Interval        int               `json:"interval"`
	EndCondition    RecurrenceEnd     `json:"end_condition"`
	MaxOccurrences  int               `json:"max_occurrences,omitempty"`
	EndDate         *time.Time        `json:"end_date,omitempty"`
	DurationSeconds int64             `json:"duration_seconds,omitempty"`
}

// Campaign is the aggregate root for one discount campaign. Status is mutated
// only through the state manager; everything else goes through the setters so
// bounds and UTC normalization hold.
type Campaign struct {
	ID   int64  `json:"id" db:"id"`
	UUID string `json:"uuid" db:"uuid"`
	Slug string `json:"slug" db:"slug"`
	Name string `json:"name" db:"name"`

	Description sql.NullString `json:"description,omitempty" db:"description"`

	Status Status `json:"status" db:"status"`

	// Schedule: stored in UTC regardless of authoring timezone.
	StartsAt sql.NullTime `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt   sql.NullTime `json:"ends_at,omitempty" db:"ends_at"`
	Timezone string       `json:"timezone" db:"timezone"`

	// Product targeting
	SelectionType   SelectionType `json:"product_selection_type" db:"product_selection_type"`
	ProductIDs      pq.Int64Array `json:"product_ids" db:"product_ids"`
	CategoryIDs     pq.Int64Array `json:"category_ids" db:"category_ids"`
	TagIDs          pq.Int64Array `json:"tag_ids" db:"tag_ids"`
	Conditions      []Condition   `json:"conditions,omitempty" db:"conditions"`
	ConditionsLogic string        `json:"conditions_logic" db:"conditions_logic"` // and|or

	// Discount
	DiscountType  DiscountType           `json:"discount_type" db:"discount_type"`
	DiscountValue float64                `json:"discount_value" db:"discount_value"`
	DiscountRules map[string]interface{} `json:"discount_rules,omitempty" db:"discount_rules"`
	Priority      int                    `json:"priority" db:"priority"`

	// Compilation bookkeeping for dynamic selection types
	CompiledAt        sql.NullTime   `json:"compiled_at,omitempty" db:"compiled_at"`
	CompilationMethod sql.NullString `json:"compilation_method,omitempty" db:"compilation_method"`

	// Recurrence
	EnableRecurring bool             `json:"enable_recurring" db:"enable_recurring"`
	RecurringConfig *RecurringConfig `json:"recurring_config,omitempty" db:"recurring_config"`

	// Performance counters
	UsageCount   int64   `json:"usage_count" db:"usage_count"`
	OrdersCount  int64   `json:"orders_count" db:"orders_count"`
	RevenueTotal float64 `json:"revenue_total" db:"revenue_total"`

	// Audit. Null created_by/updated_by marks a system action.
	CreatedBy sql.NullInt64 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy sql.NullInt64 `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt sql.NullTime  `json:"deleted_at,omitempty" db:"deleted_at"`
	Version   int           `json:"version" db:"version"`
}

// New constructs a campaign with its stable UUID and a slug derived from name.
// ID stays zero until the repository persists it.
func New(name string) *Campaign {
	return &Campaign{
		UUID:            uuid.NewString(),
		Name:            name,
		Slug:            Slugify(name),
		Status:          StatusDraft,
		Timezone:        "UTC",
		SelectionType:   SelectionAllProducts,
		ConditionsLogic: "and",
		Priority:        DefaultPriority,
		ProductIDs:      pq.Int64Array{},
		CategoryIDs:     pq.Int64Array{},
		TagIDs:          pq.Int64Array{},
	}
}

// SetSchedule stores both boundaries normalized to UTC and remembers the
// authoring timezone for display.
func (c *Campaign) SetSchedule(startsAt, endsAt *time.Time, timezone string) {
	if timezone != "" {
		c.Timezone = timezone
	}
	if startsAt != nil {
		c.StartsAt = sql.NullTime{Time: startsAt.UTC(), Valid: true}
	} else {
		c.StartsAt = sql.NullTime{}
	}
	if endsAt != nil {
		c.EndsAt = sql.NullTime{Time: endsAt.UTC(), Valid: true}
	} else {
		c.EndsAt = sql.NullTime{}
	}
}

// SetPriority clamps into the 1..10 range.
func (c *Campaign) SetPriority(p int) {
	if p < MinPriority {
		p = MinPriority
	}
	if p > MaxPriority {
		p = MaxPriority
	}
	c.Priority = p
}

// SetProductIDs keeps only positive IDs.
func (c *Campaign) SetProductIDs(ids []int64) {
	c.ProductIDs = filterPositive(ids)
}

// SetCategoryIDs keeps only positive IDs.
func (c *Campaign) SetCategoryIDs(ids []int64) {
	c.CategoryIDs = filterPositive(ids)
}

// SetTagIDs keeps only positive IDs.
func (c *Campaign) SetTagIDs(ids []int64) {
	c.TagIDs = filterPositive(ids)
}

// MarkCompiled records a completed product-selection compilation.
func (c *Campaign) MarkCompiled(method string, at time.Time) {
	c.CompiledAt = sql.NullTime{Time: at.UTC(), Valid: true}
	c.CompilationMethod = sql.NullString{String: method, Valid: true}
}

// HasDynamicSelection reports whether product IDs are resolved lazily.
func (c *Campaign) HasDynamicSelection() bool {
	return c.SelectionType == SelectionRandomProducts || c.SelectionType == SelectionSmartSelection
}

// NeedsRecompilation reports whether the resolved product set may be stale.
// Random selections are re-resolved on every check; any dynamic selection
// that has never compiled needs a run.
func (c *Campaign) NeedsRecompilation() bool {
	if !c.HasDynamicSelection() {
		return false
	}
	if c.SelectionType == SelectionRandomProducts {
		return true
	}
	return !c.CompiledAt.Valid
}

// HasProductTargeting reports whether the campaign can resolve to a non-empty
// product set: applies-to-all, or at least one explicit product/category/tag.
func (c *Campaign) HasProductTargeting() bool {
	if c.SelectionType == SelectionAllProducts {
		return true
	}
	return len(c.ProductIDs) > 0 || len(c.CategoryIDs) > 0 || len(c.TagIDs) > 0
}

// IsTerminal reports whether the status admits no future scheduled events.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusArchived
}

// Valid reports membership in the fixed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusExpired, StatusArchived:
		return true
	}
	return false
}

// ResetCounters zeroes the performance counters.
func (c *Campaign) ResetCounters() {
	c.UsageCount = 0
	c.OrdersCount = 0
	c.RevenueTotal = 0
}

// Slugify lowercases, strips non-alphanumerics and collapses separator runs
// into single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	prevHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func filterPositive(ids []int64) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
