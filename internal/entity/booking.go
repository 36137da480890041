package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusUpcoming  BookingStatus = "upcoming"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Fare is the price breakdown of a booking
type Fare struct {
	TicketFare     float64 `json:"ticket_fare" db:"ticket_fare"`
	ConvenienceFee float64 `json:"convenience_fee" db:"convenience_fee"`
	TotalPrice     float64 `json:"total_price" db:"total_price"`
}

type Booking struct {
	ID            string        `json:"id" db:"id"`
	CheckoutID    string        `json:"-" db:"checkout_id"`
	UserID        string        `json:"user_id" db:"user_id"`
	TrainID       int64         `json:"train_id" db:"train_id"`
	TrainNumber   string        `json:"train_number" db:"train_number"`
	TrainName     string        `json:"train_name" db:"train_name"`
	Origin        string        `json:"origin" db:"origin"`
	Destination   string        `json:"destination" db:"destination"`
	Class         FareClass     `json:"class" db:"class"`
	Quota         string        `json:"quota" db:"quota"`
	TravelDate    TravelDate    `json:"travel_date" db:"travel_date"`
	DepartureTime string        `json:"departure_time" db:"departure_time"`
	ArrivalTime   string        `json:"arrival_time" db:"arrival_time"`
	Passengers    Passengers    `json:"passengers" db:"passengers"`
	Fare                        // ticket_fare, convenience_fee, total_price
	Status        BookingStatus `json:"status" db:"status"`
	PNR           string        `json:"pnr" db:"pnr"`
	TransactionID string        `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// EffectiveStatus returns the status a client should see: an upcoming
// booking whose travel date has passed is reported as completed
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status != BookingStatusUpcoming {
		return b.Status
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if b.TravelDate.Before(today) {
		return BookingStatusCompleted
	}
	return BookingStatusUpcoming
}

// Route returns "Origin → Destination"
func (b *Booking) Route() string {
	return b.Origin + " → " + b.Destination
}

// DepartsAt combines the travel date with the departure time
func (b *Booking) DepartsAt() time.Time {
	dep, err := time.Parse("15:04", b.DepartureTime)
	if err != nil {
		return b.TravelDate.Time
	}
	return b.TravelDate.Add(time.Duration(dep.Hour())*time.Hour + time.Duration(dep.Minute())*time.Minute)
}

// BookingFilter is used for listing a user's bookings
type BookingFilter struct {
	UserID string
	Status BookingStatus
	Limit  int
	Offset int
}

// BookingReminder is a booking that is about to depart
type BookingReminder struct {
	BookingID  string     `json:"booking_id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	PNR        string     `json:"pnr" db:"pnr"`
	TrainName  string     `json:"train_name" db:"train_name"`
	TravelDate TravelDate `json:"travel_date" db:"travel_date"`
	Departure  string     `json:"departure_time" db:"departure_time"`
	TelegramID string     `json:"telegram_id" db:"telegram_id"`
}
