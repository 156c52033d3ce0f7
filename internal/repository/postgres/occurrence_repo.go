// internal/repository/postgres/occurrence_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartdeals-service/internal/domain/occurrence"
	xerrors "smartdeals-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OccurrenceRepository struct {
	db *pgxpool.Pool
}

func NewOccurrenceRepository(db *pgxpool.Pool) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// DeletePending removes only pending rows for a parent, preserving
// materialized and failed history.
func (r *OccurrenceRepository) DeletePending(ctx context.Context, campaignID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM campaign_occurrences WHERE campaign_id = $1 AND status = 'pending'`,
		campaignID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending occurrences: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MaxOccurrenceNumber returns the highest number ever assigned for a parent,
// across all statuses, so regeneration never reuses a number.
func (r *OccurrenceRepository) MaxOccurrenceNumber(ctx context.Context, campaignID int64) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(occurrence_number), 0) FROM campaign_occurrences WHERE campaign_id = $1`,
		campaignID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max occurrence number: %w", err)
	}
	return max, nil
}

// NonPendingStarts returns the start instants of rows that already left the
// pending state, so regeneration can skip slots that were materialized early.
func (r *OccurrenceRepository) NonPendingStarts(ctx context.Context, campaignID int64) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT starts_at FROM campaign_occurrences WHERE campaign_id = $1 AND status <> 'pending'`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupied occurrence starts: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence start: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occurrence starts: %w", err)
	}
	return out, nil
}

// BulkInsert writes a batch of pending entries in one round trip.
func (r *OccurrenceRepository) BulkInsert(ctx context.Context, entries []*occurrence.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO campaign_occurrences (
			campaign_id, occurrence_number, starts_at, ends_at, status
		) VALUES ($1, $2, $3, $4, $5)
	`
	for _, e := range entries {
		batch.Queue(query, e.CampaignID, e.OccurrenceNumber, e.StartsAt, e.EndsAt, e.Status)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert occurrence batch: %w", err)
		}
	}
	return nil
}

// FindDue returns pending entries starting within the lookahead window,
// earliest first.
func (r *OccurrenceRepository) FindDue(ctx context.Context, until time.Time, limit int) ([]*occurrence.Entry, error) {
	query := `
		SELECT id, campaign_id, occurrence_number, starts_at, ends_at, status,
		       instance_campaign_id, error_message, created_at, updated_at
		FROM campaign_occurrences
		WHERE status = 'pending' AND starts_at <= $1
		ORDER BY starts_at, occurrence_number
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due occurrences: %w", err)
	}
	defer rows.Close()

	var out []*occurrence.Entry
	for rows.Next() {
		var e occurrence.Entry
		if err := rows.Scan(
			&e.ID, &e.CampaignID, &e.OccurrenceNumber, &e.StartsAt, &e.EndsAt, &e.Status,
			&e.InstanceCampaignID, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence row: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occurrence rows: %w", err)
	}
	return out, nil
}

// MarkMaterialized transitions a pending entry to active, recording the
// instance campaign it produced. Only pending rows transition, keeping the
// materializer idempotent under redelivery.
func (r *OccurrenceRepository) MarkMaterialized(ctx context.Context, id, instanceCampaignID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaign_occurrences
		SET status = 'active', instance_campaign_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'`,
		instanceCampaignID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark occurrence materialized: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// MarkFailed transitions a pending entry to failed with the error message.
func (r *OccurrenceRepository) MarkFailed(ctx context.Context, id int64, msg string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaign_occurrences
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'`,
		msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark occurrence failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// CountByStatus returns how many entries a parent has in the given status.
func (r *OccurrenceRepository) CountByStatus(ctx context.Context, campaignID int64, status occurrence.Status) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_occurrences WHERE campaign_id = $1 AND status = $2`,
		campaignID, status,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count occurrences: %w", err)
	}
	return n, nil
}
