// internal/repository/postgres/campaign_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartdeals-service/internal/domain/campaign"
	xerrors "smartdeals-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const campaignColumns = `
	id, uuid, slug, name, description, status,
	starts_at, ends_at, timezone,
	product_selection_type, product_ids, category_ids, tag_ids,
	conditions, conditions_logic,
	discount_type, discount_value, discount_rules, priority,
	compiled_at, compilation_method,
	enable_recurring, recurring_config,
	usage_count, orders_count, revenue_total,
	created_by, updated_by, created_at, updated_at, deleted_at, version
`

type CampaignRepository struct {
	db *pgxpool.Pool
}

func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign and fills generated fields.
func (r *CampaignRepository) Create(ctx context.Context, c *campaign.Campaign) error {
	query := `
		INSERT INTO campaigns (
			uuid, slug, name, description, status,
			starts_at, ends_at, timezone,
			product_selection_type, product_ids, category_ids, tag_ids,
			conditions, conditions_logic,
			discount_type, discount_value, discount_rules, priority,
			compiled_at, compilation_method,
			enable_recurring, recurring_config,
			created_by, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING id, created_at, updated_at, version
	`

	conditionsJSON, rulesJSON, recurringJSON, err := marshalCampaignJSON(c)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		c.UUID, c.Slug, c.Name, c.Description, c.Status,
		c.StartsAt, c.EndsAt, c.Timezone,
		c.SelectionType, c.ProductIDs, c.CategoryIDs, c.TagIDs,
		conditionsJSON, c.ConditionsLogic,
		c.DiscountType, c.DiscountValue, rulesJSON, c.Priority,
		c.CompiledAt, c.CompilationMethod,
		c.EnableRecurring, recurringJSON,
		c.CreatedBy, c.UpdatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Version)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// FindByID retrieves a campaign, excluding soft-deleted rows.
func (r *CampaignRepository) FindByID(ctx context.Context, id int64) (*campaign.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindBySlug retrieves a campaign by its unique slug.
func (r *CampaignRepository) FindBySlug(ctx context.Context, slug string) (*campaign.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE slug = $1 AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(ctx, query, slug))
}

// ExistsBySlug reports whether any live campaign carries the slug.
func (r *CampaignRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE slug = $1 AND deleted_at IS NULL)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug existence: %w", err)
	}
	return exists, nil
}

// Save persists all mutable fields with an optimistic version check. The
// version counter is incremented in the same statement; a stale in-memory
// version surfaces as ErrVersionMismatch.
func (r *CampaignRepository) Save(ctx context.Context, c *campaign.Campaign) error {
	query := `
		UPDATE campaigns SET
			slug = $1, name = $2, description = $3, status = $4,
			starts_at = $5, ends_at = $6, timezone = $7,
			product_selection_type = $8, product_ids = $9, category_ids = $10, tag_ids = $11,
			conditions = $12, conditions_logic = $13,
			discount_type = $14, discount_value = $15, discount_rules = $16, priority = $17,
			compiled_at = $18, compilation_method = $19,
			enable_recurring = $20, recurring_config = $21,
			usage_count = $22, orders_count = $23, revenue_total = $24,
			updated_by = $25, updated_at = $26, deleted_at = $27,
			version = version + 1
		WHERE id = $28 AND version = $29 AND deleted_at IS NULL
		RETURNING version
	`

	conditionsJSON, rulesJSON, recurringJSON, err := marshalCampaignJSON(c)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		c.Slug, c.Name, c.Description, c.Status,
		c.StartsAt, c.EndsAt, c.Timezone,
		c.SelectionType, c.ProductIDs, c.CategoryIDs, c.TagIDs,
		conditionsJSON, c.ConditionsLogic,
		c.DiscountType, c.DiscountValue, rulesJSON, c.Priority,
		c.CompiledAt, c.CompilationMethod,
		c.EnableRecurring, recurringJSON,
		c.UsageCount, c.OrdersCount, c.RevenueTotal,
		c.UpdatedBy, c.UpdatedAt, c.DeletedAt,
		c.ID, c.Version,
	).Scan(&c.Version)

	if errors.Is(err, pgx.ErrNoRows) {
		// Row exists with a newer version, or is gone entirely.
		existing, findErr := r.FindByID(ctx, c.ID)
		if findErr != nil {
			return findErr
		}
		if existing != nil {
			return xerrors.ErrVersionMismatch
		}
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

// SoftDelete marks the campaign deleted without removing the row.
func (r *CampaignRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE campaigns SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// HardDelete removes the row permanently.
func (r *CampaignRepository) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// FindByStatus returns all live campaigns in any of the given statuses,
// oldest first so reconciliation handles long-overdue campaigns before fresh
// ones.
func (r *CampaignRepository) FindByStatus(ctx context.Context, statuses ...campaign.Status) ([]*campaign.Campaign, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}

	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = ANY($1) AND deleted_at IS NULL
		ORDER BY starts_at NULLS LAST, id`

	rows, err := r.db.Query(ctx, query, ss)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns by status: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// List retrieves campaigns with filters and pagination.
func (r *CampaignRepository) List(ctx context.Context, filters *campaign.ListFilters) ([]campaign.Campaign, int64, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}
	if filters.DiscountType != nil {
		conditions = append(conditions, fmt.Sprintf("discount_type = $%d", argPos))
		args = append(args, *filters.DiscountType)
		argPos++
	}
	if filters.SelectionType != nil {
		conditions = append(conditions, fmt.Sprintf("product_selection_type = $%d", argPos))
		args = append(args, *filters.SelectionType)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR slug ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM campaigns "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "starts_at", "ends_at", "priority", "name":
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	offset := (filters.Page - 1) * filters.PageSize
	query := fmt.Sprintf(
		"SELECT %s FROM campaigns %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		campaignColumns, where, sortBy, sortOrder, argPos, argPos+1,
	)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	ptrs, err := r.scanMany(rows)
	if err != nil {
		return nil, 0, err
	}
	out := make([]campaign.Campaign, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out, total, nil
}

// GetStats returns campaign counts by lifecycle bucket.
func (r *CampaignRepository) GetStats(ctx context.Context) (*campaign.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'expired'),
			COUNT(*) FILTER (WHERE enable_recurring)
		FROM campaigns
		WHERE deleted_at IS NULL
	`
	var s campaign.Stats
	err := r.db.QueryRow(ctx, query).Scan(
		&s.TotalCampaigns, &s.ActiveCampaigns, &s.ScheduledCampaigns,
		&s.ExpiredCampaigns, &s.RecurringCampaigns,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}
	return &s, nil
}

// ========== Scan helpers ==========

func (r *CampaignRepository) scanOne(row pgx.Row) (*campaign.Campaign, error) {
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) scanMany(rows pgx.Rows) ([]*campaign.Campaign, error) {
	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaign rows: %w", err)
	}
	return out, nil
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var conditionsJSON, rulesJSON, recurringJSON []byte

	err := row.Scan(
		&c.ID, &c.UUID, &c.Slug, &c.Name, &c.Description, &c.Status,
		&c.StartsAt, &c.EndsAt, &c.Timezone,
		&c.SelectionType, &c.ProductIDs, &c.CategoryIDs, &c.TagIDs,
		&conditionsJSON, &c.ConditionsLogic,
		&c.DiscountType, &c.DiscountValue, &rulesJSON, &c.Priority,
		&c.CompiledAt, &c.CompilationMethod,
		&c.EnableRecurring, &recurringJSON,
		&c.UsageCount, &c.OrdersCount, &c.RevenueTotal,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &c.Version,
	)
	if err != nil {
		return nil, err
	}

	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &c.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &c.DiscountRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discount rules: %w", err)
		}
	}
	if len(recurringJSON) > 0 {
		if err := json.Unmarshal(recurringJSON, &c.RecurringConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurring config: %w", err)
		}
	}

	return &c, nil
}

func marshalCampaignJSON(c *campaign.Campaign) (conditions, rules, recurring []byte, err error) {
	if c.Conditions != nil {
		if conditions, err = json.Marshal(c.Conditions); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
		}
	}
	if c.DiscountRules != nil {
		if rules, err = json.Marshal(c.DiscountRules); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal discount rules: %w", err)
		}
	}
	if c.RecurringConfig != nil {
		if recurring, err = json.Marshal(c.RecurringConfig); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal recurring config: %w", err)
		}
	}
	return conditions, rules, recurring, nil
}
