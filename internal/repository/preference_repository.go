package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/uniplan/enrollment-api/internal/models"
)

// PreferenceRepository persists scheduling preference profiles. Avoid days
// and weight overrides live in JSONB columns.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

type preferenceRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	PreferredShift  string         `db:"preferred_shift"`
	Compactness     int            `db:"compactness"`
	AvoidDays       types.JSONText `db:"avoid_days"`
	WeightOverrides types.JSONText `db:"weight_overrides"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const preferenceColumns = `id, user_id, preferred_shift, compactness, avoid_days, weight_overrides, created_at, updated_at`

func (row preferenceRow) toModel() (*models.PreferenceProfile, error) {
	profile := &models.PreferenceProfile{
		ID:             row.ID,
		UserID:         row.UserID,
		PreferredShift: models.Shift(row.PreferredShift),
		Compactness:    row.Compactness,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if len(row.AvoidDays) > 0 {
		if err := json.Unmarshal(row.AvoidDays, &profile.AvoidDays); err != nil {
			return nil, fmt.Errorf("decode avoid days: %w", err)
		}
	}
	if len(row.WeightOverrides) > 0 {
		if err := json.Unmarshal(row.WeightOverrides, &profile.WeightOverrides); err != nil {
			return nil, fmt.Errorf("decode weight overrides: %w", err)
		}
	}
	return profile, nil
}

// GetByUser returns a user's stored profile.
func (r *PreferenceRepository) GetByUser(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_preferences WHERE user_id = $1`, preferenceColumns)
	var row preferenceRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListByUsers returns stored profiles keyed by user id. Users without a
// profile are simply absent.
func (r *PreferenceRepository) ListByUsers(ctx context.Context, userIDs []string) (map[string]*models.PreferenceProfile, error) {
	if len(userIDs) == 0 {
		return map[string]*models.PreferenceProfile{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM schedule_preferences WHERE user_id = ANY($1)`, preferenceColumns)
	var rows []preferenceRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("list schedule preferences: %w", err)
	}

	profiles := make(map[string]*models.PreferenceProfile, len(rows))
	for _, row := range rows {
		profile, err := row.toModel()
		if err != nil {
			return nil, err
		}
		profiles[profile.UserID] = profile
	}
	return profiles, nil
}

// Upsert creates or updates a user's profile.
func (r *PreferenceRepository) Upsert(ctx context.Context, profile *models.PreferenceProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	avoidDays, err := json.Marshal(profile.AvoidDays)
	if err != nil {
		return fmt.Errorf("encode avoid days: %w", err)
	}
	overrides, err := json.Marshal(profile.WeightOverrides)
	if err != nil {
		return fmt.Errorf("encode weight overrides: %w", err)
	}

	row := preferenceRow{
		ID:              profile.ID,
		UserID:          profile.UserID,
		PreferredShift:  string(profile.PreferredShift),
		Compactness:     profile.Compactness,
		AvoidDays:       avoidDays,
		WeightOverrides: overrides,
		CreatedAt:       profile.CreatedAt,
		UpdatedAt:       profile.UpdatedAt,
	}
	const query = `INSERT INTO schedule_preferences (id, user_id, preferred_shift, compactness, avoid_days, weight_overrides, created_at, updated_at)
VALUES (:id, :user_id, :preferred_shift, :compactness, :avoid_days, :weight_overrides, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE
SET preferred_shift = EXCLUDED.preferred_shift,
    compactness = EXCLUDED.compactness,
    avoid_days = EXCLUDED.avoid_days,
    weight_overrides = EXCLUDED.weight_overrides,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert schedule preference: %w", err)
	}
	return nil
}
