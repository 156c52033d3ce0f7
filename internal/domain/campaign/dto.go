// internal/domain/campaign/dto.go
package campaign

import "time"

type CreateCampaignRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`

	Status Status `json:"status" binding:"omitempty,oneof=draft scheduled active"`

	// Schedule (authoring timezone; stored in UTC)
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Timezone string     `json:"timezone"`

	// Discount
	DiscountType  DiscountType           `json:"discount_type" binding:"required,oneof=percentage fixed bogo tiered spend_threshold"`
	DiscountValue float64                `json:"discount_value" binding:"min=0"`
	DiscountRules map[string]interface{} `json:"discount_rules"`
	Priority      int                    `json:"priority" binding:"omitempty,min=1,max=10"`

	// Targeting
	SelectionType   SelectionType `json:"product_selection_type" binding:"omitempty,oneof=all_products specific_products random_products smart_selection"`
	ProductIDs      []int64       `json:"product_ids"`
	CategoryIDs     []int64       `json:"category_ids"`
	TagIDs          []int64       `json:"tag_ids"`
	Conditions      []Condition   `json:"conditions"`
	ConditionsLogic string        `json:"conditions_logic" binding:"omitempty,oneof=and or"`

	// Recurrence
	EnableRecurring bool             `json:"enable_recurring"`
	RecurringConfig *RecurringConfig `json:"recurring_config"`

	// Acting user; zero means system
	ActorID int64 `json:"-"`
}

type UpdateCampaignRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Description *string `json:"description"`

	Status *Status `json:"status" binding:"omitempty,oneof=draft scheduled active paused expired archived"`

	// Schedule. HasSchedule distinguishes "leave untouched" from "clear".
	HasSchedule bool       `json:"-"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Timezone    string     `json:"timezone"`

	// Discount
	DiscountType  *DiscountType          `json:"discount_type" binding:"omitempty,oneof=percentage fixed bogo tiered spend_threshold"`
	DiscountValue *float64               `json:"discount_value" binding:"omitempty,min=0"`
	DiscountRules map[string]interface{} `json:"discount_rules"`
	Priority      *int                   `json:"priority" binding:"omitempty,min=1,max=10"`

	// Targeting
	SelectionType   *SelectionType `json:"product_selection_type" binding:"omitempty,oneof=all_products specific_products random_products smart_selection"`
	ProductIDs      []int64        `json:"product_ids"`
	CategoryIDs     []int64        `json:"category_ids"`
	TagIDs          []int64        `json:"tag_ids"`
	Conditions      []Condition    `json:"conditions"`
	ConditionsLogic *string        `json:"conditions_logic" binding:"omitempty,oneof=and or"`

	// Recurrence
	EnableRecurring *bool            `json:"enable_recurring"`
	RecurringConfig *RecurringConfig `json:"recurring_config"`

	ActorID int64 `json:"-"`
}

// DuplicateOverrides lets the caller adjust the copy before it is persisted.
type DuplicateOverrides struct {
	Name    string `json:"name" binding:"omitempty,max=255"`
	ActorID int64  `json:"-"`
}

type ListFilters struct {
	Status        *Status        `form:"status" binding:"omitempty,oneof=draft scheduled active paused expired archived"`
	DiscountType  *DiscountType  `form:"discount_type"`
	SelectionType *SelectionType `form:"product_selection_type"`
	Search        string         `form:"search"`
	Page          int            `form:"page"`
	PageSize      int            `form:"page_size"`
	SortBy        string         `form:"sort_by"` // created_at, starts_at, ends_at, priority
	SortOrder     string         `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type ListResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

type Stats struct {
	TotalCampaigns     int64 `json:"total_campaigns"`
	ActiveCampaigns    int64 `json:"active_campaigns"`
	ScheduledCampaigns int64 `json:"scheduled_campaigns"`
	ExpiredCampaigns   int64 `json:"expired_campaigns"`
	RecurringCampaigns int64 `json:"recurring_campaigns"`
}
