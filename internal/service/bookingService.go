package service

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/railbook/internal/booking"
	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/policy"
	"github.com/ds124wfegd/railbook/internal/ticket"
	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type bookingService struct {
	bookingRepo repository.BookingRepository
	authz       Authorizer
	notifier    notifier
	now         func() time.Time
}

// NewBookingService создает новый экземпляр BookingService; publisher и queue могут быть nil
func NewBookingService(
	bookingRepo repository.BookingRepository,
	authz Authorizer,
	publisher EventPublisher,
	queue TaskPublisher,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		authz:       authz,
		notifier:    notifier{events: publisher, tasks: queue},
		now:         time.Now,
	}
}

// ListBookings возвращает бронирования пользователя, последние поездки первыми.
// Фильтр по статусу применяется к вычисляемому статусу (completed не хранится).
func (s *bookingService) ListBookings(ctx context.Context, identity *entity.Identity, req *ListBookingsRequest) ([]*entity.Booking, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	all, err := s.bookingRepo.ListByUser(ctx, &entity.BookingFilter{UserID: identity.UserID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*entity.Booking, 0, len(all))
	for _, b := range all {
		b.Status = b.EffectiveStatus(now)
		if req.Status != "" && b.Status != req.Status {
			continue
		}
		out = append(out, b)
	}

	return paginate(out, req.Offset, req.Limit), nil
}

func (s *bookingService) GetBooking(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error) {
	b, err := s.authorized(ctx, identity, policy.ActionRead, id)
	if err != nil {
		return nil, err
	}
	b.Status = b.EffectiveStatus(s.now())
	return b, nil
}

// CancelBooking отменяет предстоящую поездку. Повторная отмена возвращает
// бронирование без изменений, завершенную поездку отменить нельзя.
func (s *bookingService) CancelBooking(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error) {
	b, err := s.authorized(ctx, identity, policy.ActionCancel, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed, err := booking.Cancel(b, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return b, nil
	}

	if err := s.bookingRepo.Cancel(ctx, b.ID, *b.CancelledAt); err != nil {
		if !errors.Is(err, entity.ErrBookingNotFound) {
			return nil, entity.NewStoreWriteError(err)
		}
		// cancelled concurrently
		current, getErr := s.bookingRepo.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		current.Status = current.EffectiveStatus(now)
		return current, nil
	}

	s.notifier.bookingChanged(ctx, events.TypeBookingCancelled, TaskTypeBookingCancelled, b)

	logrus.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"pnr":        b.PNR,
		"user_id":    b.UserID,
	}).Info("Booking cancelled")
	return b, nil
}

// ExportTicket возвращает PDF билета и имя файла
func (s *bookingService) ExportTicket(ctx context.Context, identity *entity.Identity, id string) ([]byte, string, error) {
	b, err := s.authorized(ctx, identity, policy.ActionExport, id)
	if err != nil {
		return nil, "", err
	}

	pdf, err := ticket.Render(b, s.now())
	if err != nil {
		return nil, "", err
	}
	return pdf, ticket.FileName(b), nil
}

func (s *bookingService) GetStats(ctx context.Context, identity *entity.Identity) (*entity.UserBookingStats, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	all, err := s.bookingRepo.ListByUser(ctx, &entity.BookingFilter{UserID: identity.UserID})
	if err != nil {
		return nil, err
	}
	return entity.NewUserBookingStats(identity.UserID, all, s.now()), nil
}

func (s *bookingService) authorized(ctx context.Context, identity *entity.Identity, action policy.Action, id string) (*entity.Booking, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	// ids are UUIDs; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, entity.NewNotFoundError(entity.ErrBookingNotFound)
	}

	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeBooking(ctx, identity, action, b); err != nil {
		logrus.WithFields(logrus.Fields{
			"booking_id": id,
			"user_id":    identity.UserID,
			"action":     action,
		}).Warn("Booking access denied")
		return nil, err
	}
	return b, nil
}

func paginate(list []*entity.Booking, offset, limit int) []*entity.Booking {
	if offset >= len(list) {
		return []*entity.Booking{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
