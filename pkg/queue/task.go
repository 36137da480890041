package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler func(context.Context, *Task) error) error
	Close() error
}

type TaskType string

const (
	TaskTypeBookingConfirmed TaskType = "booking_confirmed"
	TaskTypeBookingCancelled TaskType = "booking_cancelled"
	TaskTypeJourneyReminder  TaskType = "journey_reminder"

	// TaskTypeCorrupted помечает в DLQ записи, которые не удалось декодировать
	TaskTypeCorrupted TaskType = "corrupted"
)

// Known сообщает, есть ли обработчик для типа задачи
func (t TaskType) Known() bool {
	switch t {
	case TaskTypeBookingConfirmed, TaskTypeBookingCancelled, TaskTypeJourneyReminder:
		return true
	}
	return false
}

const dataBookingID = "booking_id"

// Task - уведомление по бронированию, ожидающее доставки
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

// NewBookingTask собирает задачу для бронирования
func NewBookingTask(taskType TaskType, bookingID string) *Task {
	return &Task{
		ID:        generateTaskID(),
		Type:      taskType,
		Data:      map[string]interface{}{dataBookingID: bookingID},
		CreatedAt: time.Now(),
	}
}

// Validate отклоняет задачи, которые воркер все равно не сможет обработать
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task ID is required")
	}
	if !t.Type.Known() {
		return fmt.Errorf("unknown task type %q", t.Type)
	}
	if t.BookingID() == "" {
		return errors.New("booking_id is required")
	}
	return nil
}

// BookingID возвращает идентификатор бронирования из данных задачи
func (t *Task) BookingID() string {
	if id, ok := t.Data[dataBookingID].(string); ok {
		return id
	}
	return ""
}

func generateTaskID() string {
	return "task_" + uuid.NewString()
}
