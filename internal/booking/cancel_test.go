package booking

import (
	"testing"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingOn(t *testing.T, date time.Time, status entity.BookingStatus) *entity.Booking {
	t.Helper()
	d, err := entity.ParseTravelDate(date.Format("2006-01-02"))
	require.NoError(t, err)
	return &entity.Booking{
		ID:         "bk-1",
		TravelDate: d,
		Status:     status,
		Fare:       entity.Fare{TicketFare: 900, ConvenienceFee: 43.6, TotalPrice: 943.6},
	}
}

func TestCancel(t *testing.T) {
	now := time.Now()

	t.Run("upcoming booking is cancelled", func(t *testing.T) {
		b := bookingOn(t, now.AddDate(0, 0, 3), entity.BookingStatusUpcoming)

		changed, err := Cancel(b, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, entity.BookingStatusCancelled, b.Status)
		require.NotNil(t, b.CancelledAt)
	})

	t.Run("second cancel changes nothing", func(t *testing.T) {
		b := bookingOn(t, now.AddDate(0, 0, 3), entity.BookingStatusUpcoming)
		_, err := Cancel(b, now)
		require.NoError(t, err)
		firstCancelledAt := *b.CancelledAt
		fareBefore := b.Fare

		changed, err := Cancel(b, now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, fareBefore, b.Fare)
		assert.Equal(t, firstCancelledAt, *b.CancelledAt)
	})

	t.Run("completed journey cannot be cancelled", func(t *testing.T) {
		b := bookingOn(t, now.AddDate(0, 0, -2), entity.BookingStatusUpcoming)

		changed, err := Cancel(b, now)
		assert.ErrorIs(t, err, entity.ErrBookingCompleted)
		assert.False(t, changed)
		assert.Equal(t, entity.BookingStatusUpcoming, b.Status)
	})

	t.Run("travel today is still upcoming", func(t *testing.T) {
		b := bookingOn(t, now, entity.BookingStatusUpcoming)

		changed, err := Cancel(b, now)
		require.NoError(t, err)
		assert.True(t, changed)
	})
}

func TestNewPNR(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pnr := NewPNR()
		assert.Len(t, pnr, 10)
		assert.Regexp(t, `^[1-9][0-9]{9}$`, pnr)
		seen[pnr] = true
	}
	assert.Greater(t, len(seen), 95)

	assert.Regexp(t, `^TXN[0-9A-F]{16}$`, NewTransactionID())
}
