package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

// ReminderSource отдает поездки, которые скоро отправляются
type ReminderSource interface {
	GetDeparting(ctx context.Context, from, to time.Time) ([]*entity.BookingReminder, error)
	MarkReminded(ctx context.Context, id string) error
}

// JourneyReminderWorker ставит в очередь напоминания о поездках, отправляющихся в ближайшее окно
type JourneyReminderWorker struct {
	bookings ReminderSource
	tasks    service.TaskPublisher
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

func NewJourneyReminderWorker(bookings ReminderSource, tasks service.TaskPublisher, interval, window time.Duration) *JourneyReminderWorker {
	return &JourneyReminderWorker{
		bookings: bookings,
		tasks:    tasks,
		interval: interval,
		window:   window,
		now:      time.Now,
	}
}

func (w *JourneyReminderWorker) Start(ctx context.Context) {
	scheduler.NewScheduler("journey_reminders", w.Run, w.interval).Start(ctx)
}

// Run выполняет один проход: одна задача на бронирование, после постановки бронирование помечается.
// Бронирования без привязанного Telegram пропускаются и будут проверены снова на следующем проходе.
func (w *JourneyReminderWorker) Run(ctx context.Context) error {
	now := w.now()
	departing, err := w.bookings.GetDeparting(ctx, now, now.Add(w.window))
	if err != nil {
		return fmt.Errorf("failed to get departing bookings: %w", err)
	}
	if len(departing) == 0 {
		logrus.Debug("No journeys to remind about")
		return nil
	}

	queued, failed := 0, 0
	for _, r := range departing {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if r.TelegramID == "" {
			continue
		}

		task := &service.Task{
			Type: service.TaskTypeJourneyReminder,
			Data: map[string]interface{}{"booking_id": r.BookingID},
		}
		if err := w.tasks.Publish(ctx, task); err != nil {
			logrus.WithError(err).WithField("booking_id", r.BookingID).Error("Failed to enqueue journey reminder")
			failed++
			continue
		}
		if err := w.bookings.MarkReminded(ctx, r.BookingID); err != nil {
			logrus.WithError(err).WithField("booking_id", r.BookingID).Warn("Failed to mark booking reminded")
		}
		queued++
	}

	logrus.WithFields(logrus.Fields{
		"found":  len(departing),
		"queued": queued,
		"failed": failed,
	}).Info("Journey reminders processed")

	if failed > 0 {
		return fmt.Errorf("%d reminders failed to enqueue", failed)
	}
	return nil
}
