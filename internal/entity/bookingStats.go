package entity

import (
	"fmt"
	"sort"
	"time"
)

// UserBookingStats содержит статистику поездок пользователя
type UserBookingStats struct {
	UserID              string        `json:"user_id"`
	TotalBookings       int           `json:"total_bookings"`
	UpcomingBookings    int           `json:"upcoming_bookings"`
	CompletedBookings   int           `json:"completed_bookings"`
	CancelledBookings   int           `json:"cancelled_bookings"`
	TotalSpent          float64       `json:"total_spent"`
	PassengersTravelled int           `json:"passengers_travelled"`
	TopRoutes           []*RouteCount `json:"top_routes"`
	NextDeparture       *time.Time    `json:"next_departure,omitempty"`
}

// RouteCount представляет маршрут с количеством бронирований
type RouteCount struct {
	Route    string `json:"route"`
	Bookings int    `json:"bookings"`
}

// TopRoutesLimit is how many routes the stats keep
const TopRoutesLimit = 5

// NewUserBookingStats builds stats from the user's bookings using derived statuses.
// Cancelled bookings are excluded from spending and passenger counts.
func NewUserBookingStats(userID string, bookings []*Booking, now time.Time) *UserBookingStats {
	stats := &UserBookingStats{
		UserID:    userID,
		TopRoutes: make([]*RouteCount, 0),
	}

	routes := make(map[string]*RouteCount)
	for _, b := range bookings {
		stats.TotalBookings++

		switch b.EffectiveStatus(now) {
		case BookingStatusCancelled:
			stats.CancelledBookings++
			continue
		case BookingStatusCompleted:
			stats.CompletedBookings++
			stats.PassengersTravelled += len(b.Passengers)
		case BookingStatusUpcoming:
			stats.UpcomingBookings++
			dep := b.DepartsAt()
			if stats.NextDeparture == nil || dep.Before(*stats.NextDeparture) {
				stats.NextDeparture = &dep
			}
		}

		stats.TotalSpent += b.TotalPrice

		route := b.Route()
		if _, ok := routes[route]; !ok {
			routes[route] = &RouteCount{Route: route}
		}
		routes[route].Bookings++
	}

	for _, rc := range routes {
		stats.TopRoutes = append(stats.TopRoutes, rc)
	}
	sort.Slice(stats.TopRoutes, func(i, j int) bool {
		if stats.TopRoutes[i].Bookings == stats.TopRoutes[j].Bookings {
			return stats.TopRoutes[i].Route < stats.TopRoutes[j].Route
		}
		return stats.TopRoutes[i].Bookings > stats.TopRoutes[j].Bookings
	})
	if len(stats.TopRoutes) > TopRoutesLimit {
		stats.TopRoutes = stats.TopRoutes[:TopRoutesLimit]
	}

	stats.TotalSpent = float64(int64(stats.TotalSpent*100+0.5)) / 100
	return stats
}

// CancellationRate вычисляет долю отмен
func (s *UserBookingStats) CancellationRate() float64 {
	if s.TotalBookings == 0 {
		return 0.0
	}
	return float64(s.CancelledBookings) / float64(s.TotalBookings)
}

// String возвращает строковое представление статистики пользователя
func (s *UserBookingStats) String() string {
	return fmt.Sprintf(
		"User: %s, Bookings: %d (upcoming %d, completed %d, cancelled %d), Spent: %.2f",
		s.UserID,
		s.TotalBookings,
		s.UpcomingBookings,
		s.CompletedBookings,
		s.CancelledBookings,
		s.TotalSpent,
	)
}
