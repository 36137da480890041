package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/jmoiron/sqlx"
)

const trainColumns = `id, number, name, origin, destination, departure_time, arrival_time,
	duration, base_price, classes, created_at, updated_at`

type trainRepository struct {
	db *sqlx.DB
}

func NewTrainRepository(db *sqlx.DB) TrainRepository {
	return &trainRepository{db: db}
}

// Upsert inserts a train or refreshes the one with the same number
func (r *trainRepository) Upsert(ctx context.Context, train *entity.Train) error {
	query := `
		INSERT INTO trains (
			number, name, origin, destination, departure_time, arrival_time,
			duration, base_price, classes
		) VALUES (
			:number, :name, :origin, :destination, :departure_time, :arrival_time,
			:duration, :base_price, :classes
		)
		ON CONFLICT (number) DO UPDATE SET
			name = EXCLUDED.name,
			origin = EXCLUDED.origin,
			destination = EXCLUDED.destination,
			departure_time = EXCLUDED.departure_time,
			arrival_time = EXCLUDED.arrival_time,
			duration = EXCLUDED.duration,
			base_price = EXCLUDED.base_price,
			classes = EXCLUDED.classes,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, train)
	if err != nil {
		return fmt.Errorf("failed to upsert train %s: %w", train.Number, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&train.ID, &train.CreatedAt, &train.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan upserted train: %w", err)
		}
	}
	return rows.Err()
}

// GetByID retrieves a train by its ID
func (r *trainRepository) GetByID(ctx context.Context, id int64) (*entity.Train, error) {
	var train entity.Train
	err := r.db.GetContext(ctx, &train, `SELECT `+trainColumns+` FROM trains WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTrainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get train: %w", err)
	}
	return &train, nil
}

func (r *trainRepository) GetByNumber(ctx context.Context, number string) (*entity.Train, error) {
	var train entity.Train
	err := r.db.GetContext(ctx, &train, `SELECT `+trainColumns+` FROM trains WHERE number = $1`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTrainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get train by number: %w", err)
	}
	return &train, nil
}

func (r *trainRepository) GetAll(ctx context.Context) ([]*entity.Train, error) {
	trains := []*entity.Train{}
	if err := r.db.SelectContext(ctx, &trains, `SELECT `+trainColumns+` FROM trains ORDER BY departure_time, number`); err != nil {
		return nil, fmt.Errorf("failed to get trains: %w", err)
	}
	return trains, nil
}

func (r *trainRepository) Search(ctx context.Context, filter *entity.TrainSearch) ([]*entity.Train, error) {
	conditions := []string{}
	args := []interface{}{}

	if origin := strings.TrimSpace(filter.Origin); origin != "" {
		args = append(args, "%"+origin+"%")
		conditions = append(conditions, fmt.Sprintf("origin ILIKE $%d", len(args)))
	}
	if destination := strings.TrimSpace(filter.Destination); destination != "" {
		args = append(args, "%"+destination+"%")
		conditions = append(conditions, fmt.Sprintf("destination ILIKE $%d", len(args)))
	}
	if filter.Class != "" {
		args = append(args, string(filter.Class))
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(classes)", len(args)))
	}

	query := `SELECT ` + trainColumns + ` FROM trains`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY departure_time, number`

	trains := []*entity.Train{}
	if err := r.db.SelectContext(ctx, &trains, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search trains: %w", err)
	}
	return trains, nil
}
