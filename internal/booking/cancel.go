package booking

import (
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
)

// Cancel marks an upcoming booking cancelled. Cancelling an already cancelled
// booking is a no-op and reports changed=false; fare fields are never touched.
func Cancel(b *entity.Booking, now time.Time) (changed bool, err error) {
	switch b.EffectiveStatus(now) {
	case entity.BookingStatusCancelled:
		return false, nil
	case entity.BookingStatusCompleted:
		return false, entity.NewValidationError("the journey is already completed", entity.ErrBookingCompleted)
	}

	at := now.UTC()
	b.Status = entity.BookingStatusCancelled
	b.CancelledAt = &at
	return true, nil
}
