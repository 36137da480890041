package postgres

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/railbook/config"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("host", cfg.Host).Info("Successfully connected to PostgreSQL")
	return db, nil
}

// Migrations are idempotent and run on every start
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS trains (
		id SERIAL PRIMARY KEY,
		number VARCHAR(10) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		origin VARCHAR(100) NOT NULL,
		destination VARCHAR(100) NOT NULL,
		departure_time VARCHAR(5) NOT NULL,
		arrival_time VARCHAR(5) NOT NULL,
		duration VARCHAR(20) NOT NULL DEFAULT '',
		base_price NUMERIC(10, 2) NOT NULL,
		classes TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(128) PRIMARY KEY,
		email VARCHAR(255) NOT NULL DEFAULT '',
		telegram_id VARCHAR(100),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id VARCHAR(128) NOT NULL,
		train_id INTEGER REFERENCES trains(id),
		train_number VARCHAR(10) NOT NULL,
		train_name VARCHAR(255) NOT NULL,
		origin VARCHAR(100) NOT NULL,
		destination VARCHAR(100) NOT NULL,
		class VARCHAR(4) NOT NULL,
		quota VARCHAR(50) NOT NULL,
		travel_date DATE NOT NULL,
		departure_time VARCHAR(5) NOT NULL,
		arrival_time VARCHAR(5) NOT NULL,
		passengers JSONB NOT NULL DEFAULT '[]',
		ticket_fare NUMERIC(12, 2) NOT NULL,
		convenience_fee NUMERIC(12, 2) NOT NULL,
		total_price NUMERIC(12, 2) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
		pnr VARCHAR(10) UNIQUE NOT NULL,
		transaction_id VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		cancelled_at TIMESTAMPTZ,
		reminded_at TIMESTAMPTZ,
		CONSTRAINT bookings_total_check CHECK (total_price = ticket_fare + convenience_fee)
	)`,

	`CREATE TABLE IF NOT EXISTS saved_profiles (
		id SERIAL PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		name VARCHAR(100) NOT NULL,
		age INTEGER NOT NULL,
		gender VARCHAR(10) NOT NULL,
		preferred_berth VARCHAR(20) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	// one booking per checkout session
	`ALTER TABLE bookings ADD COLUMN IF NOT EXISTS checkout_id VARCHAR(64)`,

	// Indexes
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_checkout ON bookings(checkout_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trains_route ON trains(lower(origin), lower(destination))`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_travel ON bookings(user_id, travel_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_travel ON bookings(status, travel_date)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_profiles_user ON saved_profiles(user_id)`,
}

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
