package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/jmoiron/sqlx"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		RETURNING telegram_id, created_at
	`

	var telegramID sql.NullString
	err := r.db.QueryRowxContext(ctx, query, user.ID, user.Email).Scan(&telegramID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.TelegramID = telegramID.String
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT id, email, COALESCE(telegram_id, '') AS telegram_id, created_at
		FROM users
		WHERE id = $1
	`

	var user entity.User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID string) (*entity.User, error) {
	query := `
		SELECT id, email, COALESCE(telegram_id, '') AS telegram_id, created_at
		FROM users
		WHERE telegram_id = $1
	`

	var user entity.User
	err := r.db.GetContext(ctx, &user, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id: %w", err)
	}
	return &user, nil
}

func (r *userRepository) UpdateTelegramID(ctx context.Context, userID, telegramID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET telegram_id = $1 WHERE id = $2`, telegramID, userID)
	if err != nil {
		return fmt.Errorf("failed to update telegram id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}
