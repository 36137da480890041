package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/jmoiron/sqlx"
)

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *entity.SavedProfile) error {
	query := `
		INSERT INTO saved_profiles (user_id, name, age, gender, preferred_berth)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		profile.UserID,
		profile.Name,
		profile.Age,
		profile.Gender,
		profile.Berth,
	).Scan(&profile.ID, &profile.CreatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, userID string, id int64) (*entity.SavedProfile, error) {
	query := `
		SELECT id, user_id, name, age, gender, preferred_berth, created_at
		FROM saved_profiles
		WHERE id = $1 AND user_id = $2
	`

	var profile entity.SavedProfile
	err := r.db.GetContext(ctx, &profile, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) ListByUser(ctx context.Context, userID string) ([]*entity.SavedProfile, error) {
	query := `
		SELECT id, user_id, name, age, gender, preferred_berth, created_at
		FROM saved_profiles
		WHERE user_id = $1
		ORDER BY name
	`

	profiles := []*entity.SavedProfile{}
	if err := r.db.SelectContext(ctx, &profiles, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list saved profiles: %w", err)
	}
	return profiles, nil
}

func (r *profileRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_profiles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete saved profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrProfileNotFound
	}
	return nil
}
