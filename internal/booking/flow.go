// Package booking holds the checkout state machine and booking cancellation rules.
//
//	SeatSelection -> PassengerEntry -> Payment -> Confirmed
//	      \________________\______________\-----> Abandoned
//
// Confirmed bookings may later be cancelled; "completed" is derived from the
// travel date and never stored as a transition.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/fare"
	"github.com/ds124wfegd/railbook/internal/passenger"
)

type State string

const (
	StateSeatSelection  State = "seat_selection"
	StatePassengerEntry State = "passenger_entry"
	StatePayment        State = "payment"
	StateConfirmed      State = "confirmed"
	StateAbandoned      State = "abandoned"
)

// DefaultQuota is the only reservation category offered
const DefaultQuota = "General"

var transitions = map[State][]State{
	StateSeatSelection:  {StatePassengerEntry, StateAbandoned},
	StatePassengerEntry: {StateSeatSelection, StatePayment, StateAbandoned},
	StatePayment:        {StatePassengerEntry, StateConfirmed, StateAbandoned},
}

func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateAbandoned
}

func (s State) canMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Store persists confirmed bookings. Create is idempotent per CheckoutID:
// when the checkout was already written it loads that booking into b and
// reports created=false.
type Store interface {
	Create(ctx context.Context, b *entity.Booking) (created bool, err error)
}

// Flow is one user's checkout session. It is serialized whole into the session store.
type Flow struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Train     entity.Train         `json:"train"`
	Class     entity.FareClass     `json:"class"`
	Date      entity.TravelDate    `json:"date"`
	Quota     string               `json:"quota"`
	State     State                `json:"state"`
	MaxSeats  int                  `json:"max_seats"`
	Layout    *entity.SeatLayout   `json:"layout"`
	Collector *passenger.Collector `json:"collector"`
	BookingID string               `json:"booking_id,omitempty"`
	PNR       string               `json:"pnr,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewFlow starts a checkout on a freshly generated layout
func NewFlow(id, userID string, train *entity.Train, layout *entity.SeatLayout, maxSeats int) (*Flow, error) {
	if layout.Empty() {
		return nil, entity.NewValidationError(layout.Message, entity.ErrClassNotSupported)
	}
	if maxSeats <= 0 {
		maxSeats = 6
	}

	now := time.Now().UTC()
	return &Flow{
		ID:        id,
		UserID:    userID,
		Train:     *train,
		Class:     layout.Class,
		Date:      layout.Date,
		Quota:     DefaultQuota,
		State:     StateSeatSelection,
		MaxSeats:  maxSeats,
		Layout:    layout,
		Collector: passenger.NewCollector(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (f *Flow) moveTo(next State) error {
	if !f.State.canMoveTo(next) {
		return entity.NewValidationError(
			fmt.Sprintf("cannot move from %s to %s", f.State, next), entity.ErrInvalidTransition)
	}
	f.State = next
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Flow) require(state State) error {
	if f.State != state {
		return entity.NewValidationError(
			fmt.Sprintf("operation not allowed in %s state", f.State), entity.ErrInvalidTransition)
	}
	return nil
}

// SelectedSeats returns the selected seats in selection order
func (f *Flow) SelectedSeats() []entity.Seat {
	return f.Collector.Seats
}

// ToggleSeat selects an available seat or releases a selected one.
// It reports whether the seat ends up selected.
func (f *Flow) ToggleSeat(seatID string) (bool, error) {
	if err := f.require(StateSeatSelection); err != nil {
		return false, err
	}

	seat, ok := f.Layout.Find(seatID)
	if !ok || !seat.Berth.Bookable() {
		return false, entity.NewNotFoundError(fmt.Errorf("%w: %s", entity.ErrSeatNotFound, seatID))
	}

	switch seat.Status {
	case entity.SeatBooked:
		return false, entity.NewCapacityError(fmt.Errorf("%w: %s", entity.ErrSeatUnavailable, seatID))

	case entity.SeatSelected:
		seat.Status = entity.SeatAvailable
		selected := make([]entity.Seat, 0, len(f.Collector.Seats))
		for _, s := range f.Collector.Seats {
			if s.ID != seatID {
				selected = append(selected, s)
			}
		}
		f.Collector.SetSeats(selected)
		f.UpdatedAt = time.Now().UTC()
		return false, nil

	default:
		if len(f.Collector.Seats) >= f.MaxSeats {
			return false, entity.NewCapacityError(fmt.Errorf("%w: at most %d per booking", entity.ErrTooManySeats, f.MaxSeats))
		}
		seat.Status = entity.SeatSelected
		f.Collector.SetSeats(append(f.Collector.Seats, *seat))
		f.UpdatedAt = time.Now().UTC()
		return true, nil
	}
}

// ProceedToPassengers requires at least one selected seat
func (f *Flow) ProceedToPassengers() error {
	if len(f.Collector.Seats) == 0 {
		return entity.NewValidationError("select at least one seat", entity.ErrNoSeatsSelected)
	}
	return f.moveTo(StatePassengerEntry)
}

// Back returns to the previous step of the checkout
func (f *Flow) Back() error {
	switch f.State {
	case StatePassengerEntry:
		return f.moveTo(StateSeatSelection)
	case StatePayment:
		return f.moveTo(StatePassengerEntry)
	}
	return entity.NewValidationError(fmt.Sprintf("cannot go back from %s", f.State), entity.ErrInvalidTransition)
}

func (f *Flow) AddPassenger(d entity.PassengerDetails) (*entity.Passenger, error) {
	if err := f.require(StatePassengerEntry); err != nil {
		return nil, err
	}
	p, err := f.Collector.Add(d)
	if err != nil {
		return nil, err
	}
	f.UpdatedAt = time.Now().UTC()
	return p, nil
}

func (f *Flow) RemovePassenger(index int) error {
	if err := f.require(StatePassengerEntry); err != nil {
		return err
	}
	if err := f.Collector.Remove(index); err != nil {
		return err
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Flow) Prefill(profile *entity.SavedProfile) error {
	if err := f.require(StatePassengerEntry); err != nil {
		return err
	}
	f.Collector.Prefill(profile)
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// ProceedToPayment requires one passenger per selected seat
func (f *Flow) ProceedToPayment() error {
	if err := f.require(StatePassengerEntry); err != nil {
		return err
	}
	if err := f.Collector.Ready(); err != nil {
		return err
	}
	return f.moveTo(StatePayment)
}

// Fare prices the current passengers at the class price
func (f *Flow) Fare(calc *fare.Calculator) (entity.Fare, error) {
	count := f.Collector.Count()
	if count == 0 {
		count = len(f.Collector.Seats)
	}
	return calc.Quote(&f.Train, f.Class, count)
}

// Confirm writes the booking and completes the checkout. On a store failure
// the flow stays in Payment and the returned error is retryable. created is
// false when an earlier attempt for this checkout had already been written.
func (f *Flow) Confirm(ctx context.Context, identity *entity.Identity, store Store, calc *fare.Calculator) (*entity.Booking, bool, error) {
	if err := f.require(StatePayment); err != nil {
		return nil, false, err
	}
	if !identity.Authenticated() {
		return nil, false, &entity.AppError{Kind: entity.KindUnauthenticated, Message: "sign in to confirm the booking", Err: entity.ErrUnauthenticated}
	}
	if identity.UserID != f.UserID {
		return nil, false, entity.NewAuthorizationError("checkout belongs to another user")
	}
	if err := f.Collector.Ready(); err != nil {
		return nil, false, err
	}

	price, err := f.Fare(calc)
	if err != nil {
		return nil, false, err
	}

	b := &entity.Booking{
		CheckoutID:    f.ID,
		UserID:        identity.UserID,
		TrainID:       f.Train.ID,
		TrainNumber:   f.Train.Number,
		TrainName:     f.Train.Name,
		Origin:        f.Train.Origin,
		Destination:   f.Train.Destination,
		Class:         f.Class,
		Quota:         f.Quota,
		TravelDate:    f.Date,
		DepartureTime: f.Train.DepartureTime,
		ArrivalTime:   f.Train.ArrivalTime,
		Passengers:    append(entity.Passengers{}, f.Collector.Passengers...),
		Fare:          price,
		Status:        entity.BookingStatusUpcoming,
		PNR:           NewPNR(),
		TransactionID: NewTransactionID(),
	}

	created, err := store.Create(ctx, b)
	if err != nil {
		return nil, false, entity.NewStoreWriteError(err)
	}

	f.Collector.Staged = nil
	f.BookingID = b.ID
	f.PNR = b.PNR
	if err := f.moveTo(StateConfirmed); err != nil {
		return nil, false, err
	}
	return b, created, nil
}

// Abandon ends a checkout that was not paid for
func (f *Flow) Abandon() error {
	if f.State == StateAbandoned {
		return nil
	}
	return f.moveTo(StateAbandoned)
}
