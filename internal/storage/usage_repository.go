package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageEvent is one recorded billable action.
type UsageEvent struct {
	ID        uuid.UUID
	UserID    string
	Action    string
	Period    string
	CreatedAt time.Time
}

// UsageRepository persists usage events for quota accounting.
type UsageRepository struct {
	db DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Create records a usage event.
func (r *UsageRepository) Create(ctx context.Context, event *UsageEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO usage_events (id, user_id, action, period, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID.String(), event.UserID, event.Action, event.Period, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Count returns how many times userID performed action in period.
func (r *UsageRepository) Count(ctx context.Context, userID, action, period string) (int, error) {
	query := `
		SELECT COUNT(*) FROM usage_events
		WHERE user_id = $1 AND action = $2 AND period = $3
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, action, period).Scan(&n); err != nil {
		return 0, fmt.Errorf("count usage events: %w", err)
	}
	return n, nil
}
