// Package passenger accumulates one passenger per selected seat.
//
// Seats are assigned by position: passenger i always sits in selected seat i,
// so removing a passenger shifts every later passenger one seat forward.
package passenger

import (
	"fmt"
	"strings"

	"github.com/ds124wfegd/railbook/internal/entity"
)

// Collector is stored inside the checkout session, so its state is exported.
type Collector struct {
	Seats      []entity.Seat            `json:"seats"`
	Passengers []entity.Passenger       `json:"passengers"`
	Staged     *entity.PassengerDetails `json:"staged,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		Seats:      []entity.Seat{},
		Passengers: []entity.Passenger{},
	}
}

func (c *Collector) SeatCount() int {
	return len(c.Seats)
}

func (c *Collector) Count() int {
	return len(c.Passengers)
}

// SetSeats replaces the selected seats. Passengers beyond the new seat count
// are dropped from the end.
func (c *Collector) SetSeats(seats []entity.Seat) {
	c.Seats = append([]entity.Seat{}, seats...)
	if len(c.Passengers) > len(c.Seats) {
		c.Passengers = c.Passengers[:len(c.Seats)]
	}
	c.assignSeats()
}

// Add appends a passenger. Empty fields are taken from the staged template,
// which is consumed by the call.
func (c *Collector) Add(details entity.PassengerDetails) (*entity.Passenger, error) {
	if len(c.Passengers) >= len(c.Seats) {
		return nil, entity.NewCapacityError(fmt.Errorf("%w: %d of %d seats already have passengers",
			entity.ErrCapacityExceeded, len(c.Passengers), len(c.Seats)))
	}

	if c.Staged != nil {
		details = merge(details, *c.Staged)
	}
	details.Name = strings.TrimSpace(details.Name)

	if err := Validate(details); err != nil {
		return nil, err
	}

	c.Passengers = append(c.Passengers, entity.NewPassenger(details))
	c.Staged = nil
	c.assignSeats()

	return &c.Passengers[len(c.Passengers)-1], nil
}

// Remove deletes the passenger at index
func (c *Collector) Remove(index int) error {
	if index < 0 || index >= len(c.Passengers) {
		return entity.NewNotFoundError(fmt.Errorf("%w: index %d", entity.ErrPassengerNotFound, index))
	}

	c.Passengers = append(c.Passengers[:index], c.Passengers[index+1:]...)
	c.assignSeats()
	return nil
}

// Prefill stages a saved profile for the next Add without taking a seat
func (c *Collector) Prefill(profile *entity.SavedProfile) {
	d := profile.Details()
	c.Staged = &d
}

// Ready checks that every selected seat has exactly one passenger
func (c *Collector) Ready() error {
	if len(c.Seats) == 0 {
		return entity.NewValidationError("select at least one seat", entity.ErrNoSeatsSelected)
	}
	if len(c.Passengers) != len(c.Seats) {
		return entity.NewCapacityError(fmt.Errorf("%w: %d passengers for %d seats",
			entity.ErrPassengerMismatch, len(c.Passengers), len(c.Seats)))
	}
	return nil
}

// Reset clears passengers and the staged template, keeping the seats
func (c *Collector) Reset() {
	c.Passengers = []entity.Passenger{}
	c.Staged = nil
}

func (c *Collector) assignSeats() {
	for i := range c.Passengers {
		c.Passengers[i].SeatID = c.Seats[i].ID
		c.Passengers[i].SeatNumber = c.Seats[i].Number
	}
}

func merge(d, template entity.PassengerDetails) entity.PassengerDetails {
	if strings.TrimSpace(d.Name) == "" {
		d.Name = template.Name
	}
	if d.Age == 0 {
		d.Age = template.Age
	}
	if d.Gender == "" {
		d.Gender = template.Gender
	}
	if d.PreferredBerth == "" {
		d.PreferredBerth = template.PreferredBerth
	}
	return d
}
