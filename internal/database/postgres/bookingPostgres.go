package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, user_id, train_id, train_number, train_name, origin, destination,
	class, quota, travel_date, departure_time, arrival_time, passengers,
	ticket_fare, convenience_fee, total_price, status, pnr, transaction_id,
	created_at, cancelled_at`

type bookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// Create stores a confirmed booking; the database assigns the id.
// A second write for the same checkout inserts nothing and loads the first booking.
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) (bool, error) {
	query := `
		INSERT INTO bookings (
			user_id, train_id, train_number, train_name, origin, destination,
			class, quota, travel_date, departure_time, arrival_time, passengers,
			ticket_fare, convenience_fee, total_price, status, pnr, transaction_id, checkout_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''))
		ON CONFLICT (checkout_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		booking.UserID,
		booking.TrainID,
		booking.TrainNumber,
		booking.TrainName,
		booking.Origin,
		booking.Destination,
		booking.Class,
		booking.Quota,
		booking.TravelDate,
		booking.DepartureTime,
		booking.ArrivalTime,
		booking.Passengers,
		booking.TicketFare,
		booking.ConvenienceFee,
		booking.TotalPrice,
		booking.Status,
		booking.PNR,
		booking.TransactionID,
		booking.CheckoutID,
	).Scan(&booking.ID, &booking.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) && booking.CheckoutID != "" {
		existing, err := r.getByCheckoutID(ctx, booking.CheckoutID)
		if err != nil {
			return false, err
		}
		*booking = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create booking: %w", err)
	}
	return true, nil
}

func (r *bookingRepository) getByCheckoutID(ctx context.Context, checkoutID string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE checkout_id = $1`, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking for checkout %s: %w", checkoutID, err)
	}
	booking.CheckoutID = checkoutID
	return &booking, nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) GetByPNR(ctx context.Context, pnr string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE pnr = $1`, pnr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by pnr: %w", err)
	}
	return &booking, nil
}

// ListByUser returns the user's bookings, latest travel date first.
// Status filtering happens in the service because "completed" is derived.
func (r *bookingRepository) ListByUser(ctx context.Context, filter *entity.BookingFilter) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE user_id = $1
		ORDER BY travel_date DESC, departure_time DESC, created_at DESC`
	args := []interface{}{filter.UserID}

	if filter.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, filter.Limit, filter.Offset)
	}

	bookings := []*entity.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	return bookings, nil
}

// Cancel only touches upcoming bookings; fares stay as they were
func (r *bookingRepository) Cancel(ctx context.Context, id string, cancelledAt time.Time) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.BookingStatusCancelled, cancelledAt, id, entity.BookingStatusUpcoming)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrBookingNotFound
	}
	return nil
}

// GetDeparting returns upcoming bookings that leave within [from, to) and were not reminded yet
func (r *bookingRepository) GetDeparting(ctx context.Context, from, to time.Time) ([]*entity.BookingReminder, error) {
	query := `
		SELECT
			b.id, b.user_id, b.pnr, b.train_name, b.travel_date, b.departure_time,
			COALESCE(u.telegram_id, '') AS telegram_id
		FROM bookings b
		LEFT JOIN users u ON u.id = b.user_id
		WHERE b.status = $1
			AND b.reminded_at IS NULL
			AND (b.travel_date + b.departure_time::time) >= $2
			AND (b.travel_date + b.departure_time::time) < $3
		ORDER BY b.travel_date, b.departure_time
	`

	reminders := []*entity.BookingReminder{}
	if err := r.db.SelectContext(ctx, &reminders, query, entity.BookingStatusUpcoming, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get departing bookings: %w", err)
	}
	return reminders, nil
}

func (r *bookingRepository) MarkReminded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bookings SET reminded_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark booking reminded: %w", err)
	}
	return nil
}
