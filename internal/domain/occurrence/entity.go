// internal/domain/occurrence/entity.go
package occurrence

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusFailed  Status = "failed"
)

// Entry is one pre-computed future run of a recurring parent campaign.
// Occurrence numbers are strictly increasing per parent and never reused;
// regeneration replaces only pending rows so materialized history survives.
type Entry struct {
	ID         int64 `json:"id" db:"id"`
	CampaignID int64 `json:"campaign_id" db:"campaign_id"`

	OccurrenceNumber int       `json:"occurrence_number" db:"occurrence_number"`
	StartsAt         time.Time `json:"starts_at" db:"starts_at"`
	EndsAt           time.Time `json:"ends_at" db:"ends_at"`

	Status Status `json:"status" db:"status"`

	// Set once a materializer turned this row into a real campaign instance.
	InstanceCampaignID sql.NullInt64  `json:"instance_campaign_id,omitempty" db:"instance_campaign_id"`
	ErrorMessage       sql.NullString `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
