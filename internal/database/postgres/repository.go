package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
)

type TrainRepository interface {
	Upsert(ctx context.Context, train *entity.Train) error
	GetByID(ctx context.Context, id int64) (*entity.Train, error)
	GetByNumber(ctx context.Context, number string) (*entity.Train, error)
	GetAll(ctx context.Context) ([]*entity.Train, error)

	// Search matches origin/destination case-insensitively; empty fields match everything
	Search(ctx context.Context, filter *entity.TrainSearch) ([]*entity.Train, error)
}

type BookingRepository interface {
	// Create assigns ID and CreatedAt. It is idempotent per CheckoutID and
	// reports whether this call inserted the row.
	Create(ctx context.Context, booking *entity.Booking) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.Booking, error)
	GetByPNR(ctx context.Context, pnr string) (*entity.Booking, error)

	// ListByUser orders by travel date, latest first
	ListByUser(ctx context.Context, filter *entity.BookingFilter) ([]*entity.Booking, error)
	Cancel(ctx context.Context, id string, cancelledAt time.Time) error

	// Reminder operations
	GetDeparting(ctx context.Context, from, to time.Time) ([]*entity.BookingReminder, error)
	MarkReminded(ctx context.Context, id string) error
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.SavedProfile) error
	GetByID(ctx context.Context, userID string, id int64) (*entity.SavedProfile, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.SavedProfile, error)
	Delete(ctx context.Context, userID string, id int64) error
}

type UserRepository interface {
	// Upsert records the identity's email on every sign-in
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByTelegramID(ctx context.Context, telegramID string) (*entity.User, error)
	UpdateTelegramID(ctx context.Context, userID, telegramID string) error
}
