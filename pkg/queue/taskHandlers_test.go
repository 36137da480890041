package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings map[string]*entity.Booking

func (f fakeBookings) GetByID(_ context.Context, id string) (*entity.Booking, error) {
	if b, ok := f[id]; ok {
		return b, nil
	}
	return nil, entity.ErrBookingNotFound
}

type fakeUsers map[string]*entity.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, entity.ErrUserNotFound
}

type sentMessage struct {
	chatID string
	text   string
}

type fakeBot struct {
	sent []sentMessage
	err  error
}

func (b *fakeBot) SendMessage(chatID, text string) error {
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func testBooking() *entity.Booking {
	date, _ := entity.ParseTravelDate("2026-12-01")
	return &entity.Booking{
		ID:            "bk-1",
		UserID:        "user-1",
		TrainNumber:   "12951",
		TrainName:     "Mumbai Rajdhani",
		Origin:        "Mumbai Central",
		Destination:   "New Delhi",
		Class:         entity.ClassThirdAC,
		TravelDate:    date,
		DepartureTime: "17:00",
		Passengers: entity.Passengers{
			{PassengerDetails: entity.PassengerDetails{Name: "Asha"}, SeatID: "B1-1"},
		},
		Fare:   entity.Fare{TicketFare: 1000, ConvenienceFee: 31.8, TotalPrice: 1031.8},
		Status: entity.BookingStatusUpcoming,
		PNR:    "1234567890",
	}
}

// TestHandleTask тестирует отправку уведомлений по типам задач
func TestHandleTask(t *testing.T) {
	tests := []struct {
		name     string
		taskType TaskType
		contains string
	}{
		{name: "confirmed", taskType: TaskTypeBookingConfirmed, contains: "Booking confirmed"},
		{name: "cancelled", taskType: TaskTypeBookingCancelled, contains: "cancelled"},
		{name: "reminder", taskType: TaskTypeJourneyReminder, contains: "Journey reminder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			h := NewTaskHandler(
				fakeBookings{"bk-1": testBooking()},
				fakeUsers{"user-1": {ID: "user-1", TelegramID: "4242"}},
				bot,
			)

			err := h.HandleTask(context.Background(), &Task{ID: "t1", Type: tt.taskType, Data: map[string]interface{}{"booking_id": "bk-1"}})
			require.NoError(t, err)
			require.Len(t, bot.sent, 1)
			assert.Equal(t, "4242", bot.sent[0].chatID)
			assert.Contains(t, bot.sent[0].text, tt.contains)
			assert.Contains(t, bot.sent[0].text, "1234567890")
		})
	}
}

func TestHandleTaskSkips(t *testing.T) {
	cancelled := testBooking()
	cancelled.Status = entity.BookingStatusCancelled

	t.Run("reminder for cancelled booking", func(t *testing.T) {
		bot := &fakeBot{}
		h := NewTaskHandler(fakeBookings{"bk-1": cancelled}, fakeUsers{"user-1": {ID: "user-1", TelegramID: "1"}}, bot)
		err := h.HandleTask(context.Background(), &Task{ID: "t", Type: TaskTypeJourneyReminder, Data: map[string]interface{}{"booking_id": "bk-1"}})
		assert.NoError(t, err)
		assert.Empty(t, bot.sent)
	})

	t.Run("user without telegram", func(t *testing.T) {
		bot := &fakeBot{}
		h := NewTaskHandler(fakeBookings{"bk-1": testBooking()}, fakeUsers{"user-1": {ID: "user-1"}}, bot)
		err := h.HandleTask(context.Background(), &Task{ID: "t", Type: TaskTypeBookingConfirmed, Data: map[string]interface{}{"booking_id": "bk-1"}})
		assert.NoError(t, err)
		assert.Empty(t, bot.sent)
	})

	t.Run("telegram disabled", func(t *testing.T) {
		h := NewTaskHandler(fakeBookings{"bk-1": testBooking()}, fakeUsers{}, nil)
		err := h.HandleTask(context.Background(), &Task{ID: "t", Type: TaskTypeBookingConfirmed, Data: map[string]interface{}{"booking_id": "bk-1"}})
		assert.NoError(t, err)
	})
}

func TestHandleTaskRetryClassification(t *testing.T) {
	rm := NewRetryManager(time.Second)
	bot := &fakeBot{err: errors.New("telegram: 502 bad gateway")}
	h := NewTaskHandler(fakeBookings{"bk-1": testBooking()}, fakeUsers{"user-1": {ID: "user-1", TelegramID: "1"}}, bot)

	tests := []struct {
		name      string
		task      *Task
		wantRetry bool
	}{
		{
			name:      "missing booking id",
			task:      &Task{ID: "t", Type: TaskTypeBookingConfirmed, MaxRetries: 3},
			wantRetry: false,
		},
		{
			name:      "unknown booking",
			task:      &Task{ID: "t", Type: TaskTypeBookingConfirmed, MaxRetries: 3, Data: map[string]interface{}{"booking_id": "nope"}},
			wantRetry: false,
		},
		{
			name:      "unknown type",
			task:      &Task{ID: "t", Type: "expire_booking", MaxRetries: 3, Data: map[string]interface{}{"booking_id": "bk-1"}},
			wantRetry: false,
		},
		{
			name:      "telegram outage",
			task:      &Task{ID: "t", Type: TaskTypeBookingConfirmed, MaxRetries: 3, Attempts: 1, Data: map[string]interface{}{"booking_id": "bk-1"}},
			wantRetry: true,
		},
		{
			name:      "telegram outage, attempts exhausted",
			task:      &Task{ID: "t", Type: TaskTypeBookingConfirmed, MaxRetries: 3, Attempts: 3, Data: map[string]interface{}{"booking_id": "bk-1"}},
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.HandleTask(context.Background(), tt.task)
			require.Error(t, err)
			retry, delay := rm.ShouldRetry(tt.task, err)
			assert.Equal(t, tt.wantRetry, retry)
			if retry {
				assert.Greater(t, delay, time.Duration(0))
			}
		})
	}
}

func TestBackoffIsCapped(t *testing.T) {
	rm := NewRetryManager(time.Second)
	for attempt := 1; attempt < 20; attempt++ {
		d := rm.backoff(attempt)
		assert.LessOrEqual(t, d, 20*time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}

// TestTaskValidate тестирует проверку задачи перед публикацией
func TestTaskValidate(t *testing.T) {
	task := NewBookingTask(TaskTypeJourneyReminder, "bk-1")
	require.NoError(t, task.Validate())
	assert.Equal(t, "bk-1", task.BookingID())
	assert.Contains(t, task.ID, "task_")

	tests := []struct {
		name string
		task *Task
	}{
		{name: "no id", task: &Task{Type: TaskTypeBookingConfirmed, Data: map[string]interface{}{"booking_id": "bk-1"}}},
		{name: "unknown type", task: &Task{ID: "t", Type: "expire_booking", Data: map[string]interface{}{"booking_id": "bk-1"}}},
		{name: "corrupted is not publishable", task: &Task{ID: "t", Type: TaskTypeCorrupted, Data: map[string]interface{}{"booking_id": "bk-1"}}},
		{name: "no booking", task: &Task{ID: "t", Type: TaskTypeBookingCancelled}},
		{name: "booking id of wrong type", task: &Task{ID: "t", Type: TaskTypeBookingCancelled, Data: map[string]interface{}{"booking_id": 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.task.Validate())
		})
	}
}
