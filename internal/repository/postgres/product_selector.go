// internal/repository/postgres/product_selector.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"smartdeals-service/internal/domain/campaign"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// defaultSelectionLimit caps how many products a dynamic selection resolves
// to when the discount rules do not say otherwise.
const defaultSelectionLimit = 100

// ProductSelector resolves dynamic campaign selections against the synced
// product catalog. The catalog is a read model kept in sync from the store;
// this repository only ever reads it.
type ProductSelector struct {
	db *pgxpool.Pool
}

func NewProductSelector(db *pgxpool.Pool) *ProductSelector {
	return &ProductSelector{db: db}
}

// SelectProducts returns the product IDs matching the campaign's targeting:
// category/tag constraints plus the configured conditions, ordered randomly
// for random selection and by sales for smart selection.
func (r *ProductSelector) SelectProducts(ctx context.Context, c *campaign.Campaign) ([]int64, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(c.CategoryIDs) > 0 {
		where = append(where, fmt.Sprintf("category_ids && %s", arg(pq.Int64Array(c.CategoryIDs))))
	}
	if len(c.TagIDs) > 0 {
		where = append(where, fmt.Sprintf("tag_ids && %s", arg(pq.Int64Array(c.TagIDs))))
	}

	var conds []string
	for _, cond := range c.Conditions {
		clause, ok := conditionClause(cond, arg)
		if !ok {
			continue
		}
		conds = append(conds, clause)
	}
	if len(conds) > 0 {
		joiner := " AND "
		if strings.EqualFold(c.ConditionsLogic, "or") {
			joiner = " OR "
		}
		where = append(where, "("+strings.Join(conds, joiner)+")")
	}

	query := "SELECT id FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch c.SelectionType {
	case campaign.SelectionRandomProducts:
		query += " ORDER BY random()"
	case campaign.SelectionSmartSelection:
		query += " ORDER BY total_sales DESC, id"
	default:
		query += " ORDER BY id"
	}
	query += fmt.Sprintf(" LIMIT %s", arg(selectionLimit(c)))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product rows: %w", err)
	}
	return ids, nil
}

// conditionClause translates one targeting condition into SQL. Unknown fields
// or operators are skipped rather than failing the whole selection.
func conditionClause(cond campaign.Condition, arg func(interface{}) string) (string, bool) {
	column, ok := map[string]string{
		"price":        "price",
		"stock_status": "stock_status",
		"total_sales":  "total_sales",
		"rating":       "average_rating",
	}[cond.Field]
	if !ok {
		return "", false
	}

	op, ok := map[string]string{
		"eq":  "=",
		"neq": "<>",
		"gt":  ">",
		"gte": ">=",
		"lt":  "<",
		"lte": "<=",
	}[cond.Operator]
	if !ok {
		return "", false
	}

	return fmt.Sprintf("%s %s %s", column, op, arg(cond.Value)), true
}

func selectionLimit(c *campaign.Campaign) int {
	if c.DiscountRules != nil {
		if v, ok := c.DiscountRules["max_products"]; ok {
			if f, ok := v.(float64); ok && f > 0 {
				return int(f)
			}
		}
	}
	return defaultSelectionLimit
}
