package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/railbook/internal/booking"
	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	redisstore "github.com/ds124wfegd/railbook/internal/database/redis"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/fare"
	"github.com/ds124wfegd/railbook/internal/seatlayout"
	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CheckoutConfig struct {
	MaxSeats             int
	RequireVerifiedEmail bool
}

// CheckoutDeps собирает зависимости сервиса оформления; Holds, Events и Tasks могут быть nil
type CheckoutDeps struct {
	Trains    repository.TrainRepository
	Bookings  booking.Store
	Profiles  repository.ProfileRepository
	Users     repository.UserRepository
	Generator *seatlayout.Generator
	Fares     *fare.Calculator
	Sessions  SessionStore
	Holds     SeatHolder
	Events    EventPublisher
	Tasks     TaskPublisher
}

type checkoutService struct {
	CheckoutDeps
	cfg      CheckoutConfig
	notifier notifier
	now      func() time.Time
}

func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig) CheckoutService {
	return &checkoutService{
		CheckoutDeps: deps,
		cfg:          cfg,
		notifier:     notifier{events: deps.Events, tasks: deps.Tasks},
		now:          time.Now,
	}
}

// Start создает сессию оформления на свежесгенерированной схеме вагона
func (s *checkoutService) Start(ctx context.Context, identity *entity.Identity, req *StartCheckoutRequest) (*CheckoutView, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	train, err := s.Trains.GetByID(ctx, req.TrainID)
	if err != nil {
		return nil, err
	}
	class, err := parseClass(req.Class)
	if err != nil {
		return nil, err
	}
	date, err := parseTravelDate(req.Date, s.now())
	if err != nil {
		return nil, err
	}
	if !train.Supports(class) {
		return nil, entity.NewValidationError(
			fmt.Sprintf("train %s does not offer class %s", train.Number, class), entity.ErrClassNotSupported)
	}

	id := uuid.NewString()
	layout := s.Generator.Generate(train, class, date)
	if err := overlayHolds(ctx, s.Holds, layout, id); err != nil {
		logrus.WithError(err).Warn("Seat holds unavailable, starting checkout without them")
	}

	flow, err := booking.NewFlow(id, identity.UserID, train, layout, s.cfg.MaxSeats)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, flow); err != nil {
		return nil, err
	}

	s.rememberUser(ctx, identity)

	logrus.WithFields(logrus.Fields{
		"session_id": flow.ID,
		"user_id":    flow.UserID,
		"train":      train.Number,
		"class":      class,
		"date":       date.String(),
	}).Info("Checkout started")
	return s.view(flow), nil
}

func (s *checkoutService) Get(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error) {
	flow, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return s.view(flow), nil
}

// ToggleSeat выбирает или освобождает место. При включенном удержании место
// сначала захватывается в Redis, чтобы две сессии не выбрали одно и то же.
func (s *checkoutService) ToggleSeat(ctx context.Context, identity *entity.Identity, id, seatID string) (*CheckoutView, error) {
	flow, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	seat, found := flow.Layout.Find(seatID)
	selecting := found && seat.Status == entity.SeatAvailable && flow.State == booking.StateSeatSelection &&
		len(flow.SelectedSeats()) < flow.MaxSeats
	key := redisstore.HoldKey(flow.Layout.TrainID, flow.Class, flow.Date, seatID)

	held := false
	if selecting && s.Holds != nil {
		ok, err := s.Holds.Hold(ctx, key, flow.ID)
		switch {
		case err != nil:
			logrus.WithError(err).WithField("seat", seatID).Warn("Seat hold failed, selecting without hold")
		case !ok:
			seat.Status = entity.SeatBooked
			if err := s.Sessions.Save(ctx, flow); err != nil {
				logrus.WithError(err).Warn("Failed to save session after lost seat")
			}
			return nil, entity.NewCapacityError(fmt.Errorf("%w: %s is held by another traveller", entity.ErrSeatUnavailable, seatID))
		default:
			held = true
		}
	}

	selected, err := flow.ToggleSeat(seatID)
	if err != nil {
		if held {
			s.release(ctx, flow, key)
		}
		return nil, err
	}
	if !selected && found && s.Holds != nil {
		s.release(ctx, flow, key)
	}

	if err := s.Sessions.Save(ctx, flow); err != nil {
		return nil, err
	}
	if lost := s.renewHolds(ctx, flow); len(lost) > 0 {
		logrus.WithFields(logrus.Fields{"session_id": flow.ID, "seats": lost}).Warn("Seat holds lost")
	}
	return s.view(flow), nil
}

func (s *checkoutService) ProceedToPassengers(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error) {
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		return f.ProceedToPassengers()
	})
}

func (s *checkoutService) AddPassenger(ctx context.Context, identity *entity.Identity, id string, details entity.PassengerDetails) (*CheckoutView, error) {
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		_, err := f.AddPassenger(details)
		return err
	})
}

func (s *checkoutService) RemovePassenger(ctx context.Context, identity *entity.Identity, id string, index int) (*CheckoutView, error) {
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		return f.RemovePassenger(index)
	})
}

// PrefillFromProfile подставляет сохраненного пассажира как шаблон для следующего добавления
func (s *checkoutService) PrefillFromProfile(ctx context.Context, identity *entity.Identity, id string, profileID int64) (*CheckoutView, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	profile, err := s.Profiles.GetByID(ctx, identity.UserID, profileID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		return f.Prefill(profile)
	})
}

func (s *checkoutService) ProceedToPayment(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error) {
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		return f.ProceedToPayment()
	})
}

func (s *checkoutService) Back(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error) {
	return s.mutate(ctx, identity, id, func(f *booking.Flow) error {
		return f.Back()
	})
}

// Confirm сохраняет бронирование. При ошибке записи сессия остается на шаге оплаты
// и клиент может повторить подтверждение.
func (s *checkoutService) Confirm(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error) {
	flow, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if s.cfg.RequireVerifiedEmail && !identity.EmailVerified {
		return nil, &entity.AppError{Kind: entity.KindAuthorization, Message: "verify your email before booking", Err: entity.ErrEmailNotVerified}
	}

	if lost := s.renewHolds(ctx, flow); len(lost) > 0 {
		return nil, entity.NewCapacityError(fmt.Errorf("%w: %s is no longer held for this checkout, choose another seat",
			entity.ErrSeatUnavailable, strings.Join(lost, ", ")))
	}

	b, created, err := flow.Confirm(ctx, identity, s.Bookings, s.Fares)
	if err != nil {
		log := logrus.WithFields(logrus.Fields{"session_id": flow.ID, "kind": entity.KindOf(err)})
		if entity.KindOf(err) == entity.KindStoreWrite {
			log.WithError(err).Error("Booking write failed")
		} else {
			log.WithError(err).Debug("Booking confirmation rejected")
		}
		return nil, err
	}

	// on a failed save the holds stay until their TTL for the retry
	if err := s.Sessions.Save(ctx, flow); err != nil {
		logrus.WithError(err).WithField("session_id", flow.ID).Warn("Failed to save confirmed session")
	} else {
		s.releaseAll(ctx, flow)
	}
	if !created {
		logrus.WithFields(logrus.Fields{"session_id": flow.ID, "booking_id": b.ID}).Info("Checkout already confirmed, returning stored booking")
		return b, nil
	}
	s.notifier.bookingChanged(ctx, events.TypeBookingConfirmed, TaskTypeBookingConfirmed, b)

	logrus.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"pnr":        b.PNR,
		"user_id":    b.UserID,
		"passengers": len(b.Passengers),
		"total":      b.TotalPrice,
	}).Info("Booking confirmed")
	return b, nil
}

// Abandon закрывает неоплаченную сессию и освобождает удержанные места
func (s *checkoutService) Abandon(ctx context.Context, identity *entity.Identity, id string) error {
	flow, err := s.load(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := flow.Abandon(); err != nil {
		return err
	}

	s.releaseAll(ctx, flow)
	if err := s.Sessions.Delete(ctx, flow.ID); err != nil {
		return err
	}

	logrus.WithField("session_id", flow.ID).Info("Checkout abandoned")
	return nil
}

func (s *checkoutService) load(ctx context.Context, identity *entity.Identity, id string) (*booking.Flow, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	flow, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if flow.UserID != identity.UserID {
		return nil, entity.NewAuthorizationError("checkout belongs to another user")
	}
	return flow, nil
}

// mutate применяет шаг к сессии и сохраняет ее только при успехе
func (s *checkoutService) mutate(ctx context.Context, identity *entity.Identity, id string, step func(*booking.Flow) error) (*CheckoutView, error) {
	flow, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := step(flow); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, flow); err != nil {
		return nil, err
	}
	if lost := s.renewHolds(ctx, flow); len(lost) > 0 {
		logrus.WithFields(logrus.Fields{"session_id": flow.ID, "seats": lost}).Warn("Seat holds lost")
	}
	return s.view(flow), nil
}

func (s *checkoutService) view(flow *booking.Flow) *CheckoutView {
	v := &CheckoutView{Flow: flow}
	if len(flow.SelectedSeats()) == 0 {
		return v
	}
	price, err := flow.Fare(s.Fares)
	if err != nil {
		logrus.WithError(err).WithField("session_id", flow.ID).Warn("Failed to price checkout")
		return v
	}
	v.Fare = &price
	return v
}

func (s *checkoutService) release(ctx context.Context, flow *booking.Flow, key string) {
	if s.Holds == nil {
		return
	}
	if err := s.Holds.Release(ctx, key, flow.ID); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to release seat hold")
	}
}

// renewHolds extends the holds of every selected seat along with the session TTL
// and returns the seats another checkout took after their hold expired.
// A Redis failure is logged and reported as no loss.
func (s *checkoutService) renewHolds(ctx context.Context, flow *booking.Flow) []string {
	if s.Holds == nil || flow.State.Terminal() {
		return nil
	}
	var lost []string
	for _, seat := range flow.SelectedSeats() {
		key := redisstore.HoldKey(flow.Layout.TrainID, flow.Class, flow.Date, seat.ID)
		ok, err := s.Holds.Hold(ctx, key, flow.ID)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to renew seat hold")
			return nil
		}
		if !ok {
			lost = append(lost, seat.ID)
		}
	}
	return lost
}

func (s *checkoutService) releaseAll(ctx context.Context, flow *booking.Flow) {
	for _, seat := range flow.SelectedSeats() {
		s.release(ctx, flow, redisstore.HoldKey(flow.Layout.TrainID, flow.Class, flow.Date, seat.ID))
	}
}

// rememberUser сохраняет email из токена, чтобы привязать Telegram позже
func (s *checkoutService) rememberUser(ctx context.Context, identity *entity.Identity) {
	if s.Users == nil {
		return
	}
	if err := s.Users.Upsert(ctx, &entity.User{ID: identity.UserID, Email: identity.Email}); err != nil {
		logrus.WithError(err).WithField("user_id", identity.UserID).Warn("Failed to record user")
	}
}

func requireIdentity(identity *entity.Identity) error {
	if !identity.Authenticated() {
		return &entity.AppError{Kind: entity.KindUnauthenticated, Message: "sign in to continue", Err: entity.ErrUnauthenticated}
	}
	return nil
}
