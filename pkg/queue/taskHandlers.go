package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/sirupsen/logrus"
)

// BookingGetter и UserGetter реализуются репозиториями Postgres
type BookingGetter interface {
	GetByID(ctx context.Context, id string) (*entity.Booking, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// TelegramBot интерфейс для Telegram бота
type TelegramBot interface {
	SendMessage(chatID, text string) error
}

// TaskHandler обрабатывает задачи уведомлений из очереди
type TaskHandler struct {
	bookings    BookingGetter
	users       UserGetter
	telegramBot TelegramBot
}

// NewTaskHandler создает новый обработчик задач; telegramBot может быть nil
func NewTaskHandler(bookings BookingGetter, users UserGetter, telegramBot TelegramBot) *TaskHandler {
	return &TaskHandler{
		bookings:    bookings,
		users:       users,
		telegramBot: telegramBot,
	}
}

// HandleTask обрабатывает задачу
func (h *TaskHandler) HandleTask(ctx context.Context, task *Task) error {
	bookingID := task.BookingID()
	if bookingID == "" {
		return fmt.Errorf("%w: task %s has no booking_id", ErrPermanent, task.ID)
	}

	booking, err := h.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	var text string
	switch task.Type {
	case TaskTypeBookingConfirmed:
		text = confirmedMessage(booking)
	case TaskTypeBookingCancelled:
		text = cancelledMessage(booking)
	case TaskTypeJourneyReminder:
		if booking.Status != entity.BookingStatusUpcoming {
			return nil
		}
		text = reminderMessage(booking)
	default:
		return fmt.Errorf("%w: unknown task type %s", ErrPermanent, task.Type)
	}

	return h.notify(ctx, booking.UserID, text, task)
}

func (h *TaskHandler) notify(ctx context.Context, userID, text string, task *Task) error {
	log := logrus.WithFields(logrus.Fields{"task_id": task.ID, "type": task.Type, "user_id": userID})

	if h.telegramBot == nil {
		log.Debug("Telegram disabled, notification skipped")
		return nil
	}

	user, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, entity.ErrUserNotFound) {
		log.Debug("User has no profile, notification skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user.TelegramID == "" {
		log.Debug("User has no linked Telegram chat, notification skipped")
		return nil
	}

	if err := h.telegramBot.SendMessage(user.TelegramID, text); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	log.Info("Notification sent")
	return nil
}

func confirmedMessage(b *entity.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Booking confirmed\n\nPNR: %s\nTrain: %s %s\n%s\n", b.PNR, b.TrainNumber, b.TrainName, b.Route())
	fmt.Fprintf(&sb, "Date: %s, departs %s\nClass: %s\n", b.TravelDate.Format("02 Jan 2006"), b.DepartureTime, b.Class)
	for _, p := range b.Passengers {
		fmt.Fprintf(&sb, "• %s (%s)\n", p.Name, p.SeatID)
	}
	fmt.Fprintf(&sb, "Total paid: ₹%.2f", b.TotalPrice)
	return sb.String()
}

func cancelledMessage(b *entity.Booking) string {
	return fmt.Sprintf("❌ Booking %s cancelled\n\n%s %s, %s on %s",
		b.PNR, b.TrainNumber, b.TrainName, b.Route(), b.TravelDate.Format("02 Jan 2006"))
}

func reminderMessage(b *entity.Booking) string {
	return fmt.Sprintf("🚆 Journey reminder\n\n%s %s departs at %s on %s\n%s\nPNR: %s",
		b.TrainNumber, b.TrainName, b.DepartureTime, b.TravelDate.Format("02 Jan 2006"), b.Route(), b.PNR)
}
