package service

import (
	"context"
	"testing"

	redisstore "github.com/ds124wfegd/railbook/internal/database/redis"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/seatlayout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchTrains тестирует поиск по маршруту и классу
func TestSearchTrains(t *testing.T) {
	svc := NewCatalogService(assistantCatalog(), seatlayout.NewGenerator(), nil)
	ctx := context.Background()

	trains, err := svc.SearchTrains(ctx, &entity.TrainSearch{Origin: " mumbai ", Destination: "NEW DELHI"})
	require.NoError(t, err)
	assert.Len(t, trains, 2)

	trains, err = svc.SearchTrains(ctx, &entity.TrainSearch{Origin: "Mumbai", Class: "3a"})
	require.NoError(t, err)
	require.Len(t, trains, 1)
	assert.Equal(t, "12951", trains[0].Number)

	_, err = svc.SearchTrains(ctx, &entity.TrainSearch{Class: "ZZ"})
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))

	_, err = svc.SearchTrains(ctx, &entity.TrainSearch{Date: travelDay(-1)})
	assert.ErrorIs(t, err, entity.ErrTravelDateInPast)
}

// TestGetLayoutOverlaysHolds тестирует отображение удержанных мест как занятых
func TestGetLayoutOverlaysHolds(t *testing.T) {
	holds := newMemoryHolds()
	svc := NewCatalogService(assistantCatalog(), seatlayout.NewGenerator(seatlayout.WithAvailability(1)), holds)
	ctx := context.Background()

	layout, err := svc.GetLayout(ctx, 1, "SL", travelDay(3))
	require.NoError(t, err)
	require.False(t, layout.Empty())
	for _, seat := range layout.Seats() {
		assert.Equal(t, entity.SeatAvailable, seat.Status)
	}

	seatID := layout.Seats()[0].ID
	holds.owners[redisstore.HoldKey(1, entity.ClassSleeper, mustDate(t, 3), seatID)] = "another-session"

	layout, err = svc.GetLayout(ctx, 1, "SL", travelDay(3))
	require.NoError(t, err)
	seat, ok := layout.Find(seatID)
	require.True(t, ok)
	assert.Equal(t, entity.SeatBooked, seat.Status)
}

// TestGetLayoutUnsupportedClass тестирует класс, которого нет у поезда
func TestGetLayoutUnsupportedClass(t *testing.T) {
	svc := NewCatalogService(assistantCatalog(), seatlayout.NewGenerator(), nil)

	layout, err := svc.GetLayout(context.Background(), 2, "1A", travelDay(3))
	require.NoError(t, err)
	assert.True(t, layout.Empty())
	assert.Equal(t, seatlayout.NoLayoutMessage, layout.Message)

	_, err = svc.GetLayout(context.Background(), 42, "SL", travelDay(3))
	assert.ErrorIs(t, err, entity.ErrTrainNotFound)
}

func TestListClasses(t *testing.T) {
	svc := NewCatalogService(assistantCatalog(), seatlayout.NewGenerator(), nil)

	classes := svc.ListClasses()
	require.Len(t, classes, 6)
	assert.Equal(t, entity.ClassFirstAC, classes[0].Code)
	assert.Equal(t, entity.ClassSecondSit, classes[5].Code)
}
