package fare

import (
	"fmt"
	"math"

	"github.com/ds124wfegd/railbook/internal/entity"
)

// Convenience fee policy: a flat part plus a per-passenger part
const (
	DefaultFixedBase        = 20.0
	DefaultPerPassengerRate = 11.80
)

type Calculator struct {
	fixedBase    float64
	perPassenger float64
}

func NewCalculator(fixedBase, perPassenger float64) *Calculator {
	return &Calculator{fixedBase: fixedBase, perPassenger: perPassenger}
}

func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultFixedBase, DefaultPerPassengerRate)
}

// Calculate keeps full precision; use Round at the persistence or display boundary.
func (c *Calculator) Calculate(seatPrice float64, passengers int) (entity.Fare, error) {
	if passengers <= 0 {
		return entity.Fare{}, fmt.Errorf("%w: passenger count must be positive", entity.ErrInvalidInput)
	}
	if seatPrice < 0 {
		return entity.Fare{}, fmt.Errorf("%w: seat price cannot be negative", entity.ErrInvalidInput)
	}

	ticket := seatPrice * float64(passengers)
	fee := c.fixedBase + c.perPassenger*float64(passengers)
	return entity.Fare{
		TicketFare:     ticket,
		ConvenienceFee: fee,
		TotalPrice:     ticket + fee,
	}, nil
}

// Quote is Calculate for a train class, rounded for storage
func (c *Calculator) Quote(train *entity.Train, class entity.FareClass, passengers int) (entity.Fare, error) {
	f, err := c.Calculate(train.PriceFor(class), passengers)
	if err != nil {
		return entity.Fare{}, err
	}
	return Round(f), nil
}

// Round rounds the parts to cents and rebuilds the total from them,
// so TotalPrice == TicketFare + ConvenienceFee still holds.
func Round(f entity.Fare) entity.Fare {
	ticket := Round2(f.TicketFare)
	fee := Round2(f.ConvenienceFee)
	return entity.Fare{
		TicketFare:     ticket,
		ConvenienceFee: fee,
		TotalPrice:     Round2(ticket + fee),
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Consistent reports whether total equals fare plus fee to the cent
func Consistent(f entity.Fare) bool {
	return math.Abs(f.TicketFare+f.ConvenienceFee-f.TotalPrice) < 0.005
}
