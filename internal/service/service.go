package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/railbook/internal/booking"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/policy"
	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/ds124wfegd/railbook/pkg/llm"
	"github.com/ds124wfegd/railbook/pkg/queue"
)

// CatalogService отвечает за поиск поездов и схемы вагонов
type CatalogService interface {
	SearchTrains(ctx context.Context, req *entity.TrainSearch) ([]*entity.Train, error)
	GetTrain(ctx context.Context, id int64) (*entity.Train, error)
	GetLayout(ctx context.Context, trainID int64, class, date string) (*entity.SeatLayout, error)
	ListClasses() []entity.ClassInfo
}

// CheckoutService ведет сессию оформления: места -> пассажиры -> оплата -> подтверждение
type CheckoutService interface {
	Start(ctx context.Context, identity *entity.Identity, req *StartCheckoutRequest) (*CheckoutView, error)
	Get(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error)
	ToggleSeat(ctx context.Context, identity *entity.Identity, id, seatID string) (*CheckoutView, error)
	ProceedToPassengers(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error)
	AddPassenger(ctx context.Context, identity *entity.Identity, id string, details entity.PassengerDetails) (*CheckoutView, error)
	RemovePassenger(ctx context.Context, identity *entity.Identity, id string, index int) (*CheckoutView, error)
	PrefillFromProfile(ctx context.Context, identity *entity.Identity, id string, profileID int64) (*CheckoutView, error)
	ProceedToPayment(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error)
	Back(ctx context.Context, identity *entity.Identity, id string) (*CheckoutView, error)
	Confirm(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error)
	Abandon(ctx context.Context, identity *entity.Identity, id string) error
}

// BookingService определяет операции с подтвержденными бронированиями
type BookingService interface {
	ListBookings(ctx context.Context, identity *entity.Identity, req *ListBookingsRequest) ([]*entity.Booking, error)
	GetBooking(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error)
	CancelBooking(ctx context.Context, identity *entity.Identity, id string) (*entity.Booking, error)
	ExportTicket(ctx context.Context, identity *entity.Identity, id string) ([]byte, string, error)
	GetStats(ctx context.Context, identity *entity.Identity) (*entity.UserBookingStats, error)
}

// ProfileService хранит сохраненных пассажиров пользователя
type ProfileService interface {
	CreateProfile(ctx context.Context, identity *entity.Identity, details entity.PassengerDetails) (*entity.SavedProfile, error)
	ListProfiles(ctx context.Context, identity *entity.Identity) ([]*entity.SavedProfile, error)
	DeleteProfile(ctx context.Context, identity *entity.Identity, id int64) error
}

// UserService defines the interface for user operations
type UserService interface {
	GetMe(ctx context.Context, identity *entity.Identity) (*entity.User, error)
	LinkTelegram(ctx context.Context, identity *entity.Identity, telegramID string) (*entity.User, error)
}

// QueueAdminService дает администратору обзор очереди уведомлений и DLQ
type QueueAdminService interface {
	GetOverview(ctx context.Context, identity *entity.Identity) (*QueueOverview, error)
	ListFailedTasks(ctx context.Context, identity *entity.Identity, limit int) ([]*queue.FailedTask, error)
	RequeueFailedTask(ctx context.Context, identity *entity.Identity, taskID string) error
}

// AssistantService оборачивает два AI-сценария: подбор поездов и чат
type AssistantService interface {
	Suggest(ctx context.Context, req *SuggestionRequest) (*SuggestionResult, error)
	Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error)
}

// StartCheckoutRequest представляет данные для начала оформления
type StartCheckoutRequest struct {
	TrainID int64  `json:"train_id" binding:"required,min=1"`
	Class   string `json:"class" binding:"required"`
	Date    string `json:"date" binding:"required"`
}

// CheckoutView is the session as the client sees it, with the current fare
type CheckoutView struct {
	*booking.Flow
	Fare *entity.Fare `json:"fare,omitempty"`
}

type ListBookingsRequest struct {
	Status entity.BookingStatus `form:"status" binding:"omitempty,oneof=upcoming completed cancelled"`
	Limit  int                  `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int                  `form:"offset" binding:"omitempty,min=0"`
}

type QueueOverview struct {
	Queue *queue.QueueStats `json:"queue"`
	DLQ   *queue.DLQStats   `json:"dlq"`
}

type ListFailedTasksRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

type LinkTelegramRequest struct {
	TelegramID string `json:"telegram_id" binding:"required,numeric,max=32"`
}

type SuggestionRequest struct {
	Origin      string `json:"origin" binding:"required,max=100"`
	Destination string `json:"destination" binding:"required,max=100"`
	Date        string `json:"date" binding:"required"`
	Preferences string `json:"preferences" binding:"max=500"`
}

type Suggestion struct {
	TrainNumber string           `json:"train_number" binding:"required"`
	Class       entity.FareClass `json:"class" binding:"required,oneof=1A 2A 3A SL CC 2S"`
	Reason      string           `json:"reason" binding:"required"`
}

type SuggestionResult struct {
	Suggestions []Suggestion `json:"suggestions" binding:"dive"`
	Summary     string       `json:"summary" binding:"required"`
}

const MaxChatHistory = 20

type ChatTurn struct {
	Role    llm.Role `json:"role" binding:"required,oneof=user assistant"`
	Content string   `json:"content" binding:"required,max=2000"`
}

type ChatRequest struct {
	Message string     `json:"message" binding:"required,max=2000"`
	History []ChatTurn `json:"history" binding:"max=20,dive"`
}

type ChatReply struct {
	Reply string `json:"reply" binding:"required"`
}

// Зависимости сервисов, которые реализуют Redis, брокеры и OPA

type SessionStore interface {
	Save(ctx context.Context, flow *booking.Flow) error
	Get(ctx context.Context, id string) (*booking.Flow, error)
	Delete(ctx context.Context, id string) error
}

type SeatHolder interface {
	Hold(ctx context.Context, key, owner string) (bool, error)
	Release(ctx context.Context, key, owner string) error
	Owners(ctx context.Context, keys []string) (map[string]string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Authorizer interface {
	AuthorizeBooking(ctx context.Context, identity *entity.Identity, action policy.Action, b *entity.Booking) error
}

type AdminAuthorizer interface {
	AuthorizeAdmin(ctx context.Context, identity *entity.Identity, action policy.Action) error
}

// QueueInspector реализует *queue.RedisQueue
type QueueInspector interface {
	GetQueueStats(ctx context.Context) (*queue.QueueStats, error)
	DLQ() queue.DLQHandler
}

type Completer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message, out interface{}) error
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
}

// Константы типов задач
const (
	TaskTypeBookingConfirmed = "booking_confirmed"
	TaskTypeBookingCancelled = "booking_cancelled"
	TaskTypeJourneyReminder  = "journey_reminder"
)
