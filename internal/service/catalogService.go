package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	redisstore "github.com/ds124wfegd/railbook/internal/database/redis"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/seatlayout"
	"github.com/sirupsen/logrus"
)

type catalogService struct {
	trainRepo repository.TrainRepository
	generator *seatlayout.Generator
	holds     SeatHolder
	now       func() time.Time
}

// NewCatalogService создает сервис каталога; holds может быть nil, если удержание мест выключено
func NewCatalogService(trainRepo repository.TrainRepository, generator *seatlayout.Generator, holds SeatHolder) CatalogService {
	return &catalogService{
		trainRepo: trainRepo,
		generator: generator,
		holds:     holds,
		now:       time.Now,
	}
}

func (s *catalogService) SearchTrains(ctx context.Context, req *entity.TrainSearch) ([]*entity.Train, error) {
	filter := &entity.TrainSearch{
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
	}

	if req.Class != "" {
		class, err := parseClass(string(req.Class))
		if err != nil {
			return nil, err
		}
		filter.Class = class
	}
	if req.Date != "" {
		if _, err := parseTravelDate(req.Date, s.now()); err != nil {
			return nil, err
		}
		filter.Date = req.Date
	}

	trains, err := s.trainRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search trains: %w", err)
	}
	return trains, nil
}

func (s *catalogService) GetTrain(ctx context.Context, id int64) (*entity.Train, error) {
	train, err := s.trainRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return train, nil
}

// GetLayout генерирует схему вагона; места, удерживаемые чужими сессиями, показываются занятыми
func (s *catalogService) GetLayout(ctx context.Context, trainID int64, class, date string) (*entity.SeatLayout, error) {
	train, err := s.trainRepo.GetByID(ctx, trainID)
	if err != nil {
		return nil, err
	}

	fareClass, err := parseClass(class)
	if err != nil {
		return nil, err
	}
	travelDate, err := parseTravelDate(date, s.now())
	if err != nil {
		return nil, err
	}

	layout := s.generator.Generate(train, fareClass, travelDate)
	if err := overlayHolds(ctx, s.holds, layout, ""); err != nil {
		logrus.WithError(err).WithField("train_id", trainID).Warn("Seat holds unavailable, showing generated layout")
	}
	return layout, nil
}

func (s *catalogService) ListClasses() []entity.ClassInfo {
	return entity.AllClasses()
}

// overlayHolds marks seats held by sessions other than own as booked
func overlayHolds(ctx context.Context, holds SeatHolder, layout *entity.SeatLayout, own string) error {
	if holds == nil || layout.Empty() {
		return nil
	}

	keys := make([]string, 0)
	index := make(map[string]*entity.Seat)
	for r := range layout.Rows {
		for c := range layout.Rows[r] {
			seat := &layout.Rows[r][c]
			if !seat.Berth.Bookable() || seat.Status != entity.SeatAvailable {
				continue
			}
			key := redisstore.HoldKey(layout.TrainID, layout.Class, layout.Date, seat.ID)
			keys = append(keys, key)
			index[key] = seat
		}
	}

	owners, err := holds.Owners(ctx, keys)
	if err != nil {
		return err
	}
	for key, owner := range owners {
		if owner != "" && owner != own {
			index[key].Status = entity.SeatBooked
		}
	}
	return nil
}

func parseClass(code string) (entity.FareClass, error) {
	info, ok := entity.LookupClass(code)
	if !ok {
		return "", entity.NewValidationError(fmt.Sprintf("unknown fare class %q", code), entity.ErrInvalidInput)
	}
	return info.Code, nil
}

// parseTravelDate принимает только сегодняшнюю или будущую дату (UTC)
func parseTravelDate(s string, now time.Time) (entity.TravelDate, error) {
	date, err := entity.ParseTravelDate(s)
	if err != nil {
		return entity.TravelDate{}, entity.NewValidationError(err.Error(), entity.ErrInvalidTravelDate)
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return entity.TravelDate{}, entity.NewValidationError("travel date cannot be in the past", entity.ErrTravelDateInPast)
	}
	return date, nil
}
