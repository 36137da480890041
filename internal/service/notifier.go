package service

import (
	"context"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/sirupsen/logrus"
)

// notifier публикует событие и ставит задачу уведомления; ошибки только логируются,
// бронирование к этому моменту уже сохранено
type notifier struct {
	events EventPublisher
	tasks  TaskPublisher
}

func (n notifier) bookingChanged(ctx context.Context, eventType, taskType string, b *entity.Booking) {
	log := logrus.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"pnr":        b.PNR,
		"event":      eventType,
	})

	if n.events != nil {
		event := events.NewEvent(eventType, b.ID, bookingEventData(b))
		if err := n.events.Publish(ctx, event); err != nil {
			log.WithError(err).Error("Failed to publish booking event")
		}
	}

	if n.tasks != nil {
		task := &Task{
			Type: taskType,
			Data: map[string]interface{}{"booking_id": b.ID},
		}
		if err := n.tasks.Publish(ctx, task); err != nil {
			log.WithError(err).Error("Failed to enqueue notification task")
		}
	}
}

func bookingEventData(b *entity.Booking) map[string]interface{} {
	data := map[string]interface{}{
		"booking_id":   b.ID,
		"user_id":      b.UserID,
		"pnr":          b.PNR,
		"train_number": b.TrainNumber,
		"class":        b.Class,
		"travel_date":  b.TravelDate.String(),
		"passengers":   len(b.Passengers),
		"total_price":  b.TotalPrice,
		"status":       b.Status,
	}
	if b.CancelledAt != nil {
		data["cancelled_at"] = b.CancelledAt
	}
	return data
}
