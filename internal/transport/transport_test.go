package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/ds124wfegd/railbook/pkg/queue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubCatalog struct {
	service.CatalogService
	trains []*entity.Train
}

func (s *stubCatalog) SearchTrains(_ context.Context, req *entity.TrainSearch) ([]*entity.Train, error) {
	if req.Class == "ZZ" {
		return nil, entity.NewValidationError("unknown fare class", entity.ErrInvalidInput)
	}
	return s.trains, nil
}

func (s *stubCatalog) GetTrain(_ context.Context, id int64) (*entity.Train, error) {
	for _, t := range s.trains {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, entity.ErrTrainNotFound
}

type stubBookings struct {
	service.BookingService
	seen   *entity.Identity
	err    error
	cancel func(id string) (*entity.Booking, error)
}

func (s *stubBookings) ListBookings(_ context.Context, identity *entity.Identity, req *service.ListBookingsRequest) ([]*entity.Booking, error) {
	s.seen = identity
	if s.err != nil {
		return nil, s.err
	}
	return []*entity.Booking{{ID: "b-1", UserID: identity.UserID, Status: req.Status}}, nil
}

func (s *stubBookings) CancelBooking(_ context.Context, identity *entity.Identity, id string) (*entity.Booking, error) {
	s.seen = identity
	return s.cancel(id)
}

func (s *stubBookings) ExportTicket(_ context.Context, identity *entity.Identity, id string) ([]byte, string, error) {
	s.seen = identity
	return []byte("%PDF-1.3 test"), "ticket-1234567890.pdf", nil
}

type stubCheckout struct {
	service.CheckoutService
	confirmErr error
}

func (s *stubCheckout) Confirm(_ context.Context, _ *entity.Identity, _ string) (*entity.Booking, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &entity.Booking{ID: "b-1", PNR: "1234567890", Status: entity.BookingStatusUpcoming}, nil
}

func (s *stubCheckout) AddPassenger(_ context.Context, _ *entity.Identity, id string, details entity.PassengerDetails) (*service.CheckoutView, error) {
	if details.Name == "" {
		return nil, entity.NewValidationError("name is required", entity.ErrInvalidInput)
	}
	return &service.CheckoutView{}, nil
}

type stubAssistant struct {
	service.AssistantService
}

func (s *stubAssistant) Chat(_ context.Context, _ *service.ChatRequest) (*service.ChatReply, error) {
	return nil, entity.ErrAssistantDisabled
}

type stubQueueAdmin struct {
	limit int
}

func (s *stubQueueAdmin) authorize(identity *entity.Identity) error {
	for _, role := range identity.Roles {
		if role == "admin" {
			return nil
		}
	}
	return entity.NewAuthorizationError("admin role required")
}

func (s *stubQueueAdmin) GetOverview(_ context.Context, identity *entity.Identity) (*service.QueueOverview, error) {
	if err := s.authorize(identity); err != nil {
		return nil, err
	}
	return &service.QueueOverview{Queue: &queue.QueueStats{MainQueue: 1}, DLQ: &queue.DLQStats{QueueSize: 1}}, nil
}

func (s *stubQueueAdmin) ListFailedTasks(_ context.Context, identity *entity.Identity, limit int) ([]*queue.FailedTask, error) {
	if err := s.authorize(identity); err != nil {
		return nil, err
	}
	s.limit = limit
	return []*queue.FailedTask{{Task: &queue.Task{ID: "task_1", Type: queue.TaskTypeBookingConfirmed}, Error: "telegram: timeout", Attempts: 3}}, nil
}

func (s *stubQueueAdmin) RequeueFailedTask(_ context.Context, identity *entity.Identity, taskID string) error {
	if err := s.authorize(identity); err != nil {
		return err
	}
	if taskID != "task_1" {
		return entity.NewNotFoundError(fmt.Errorf("%w: %s", queue.ErrTaskNotInDLQ, taskID))
	}
	return nil
}

type testServer struct {
	router   *gin.Engine
	verifier *middleware.TokenVerifier
	bookings *stubBookings
	checkout *stubCheckout
	admin    *stubQueueAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		verifier: middleware.NewTokenVerifier(testSecret, "railbook-idp", "railbook"),
		bookings: &stubBookings{},
		checkout: &stubCheckout{},
		admin:    &stubQueueAdmin{},
	}
	ts.router = InitRoutes(Handlers{
		Catalog:   NewCatalogHandler(&stubCatalog{trains: []*entity.Train{{ID: 1, Number: "12951"}}}),
		Checkout:  NewCheckoutHandler(ts.checkout),
		Booking:   NewBookingHandler(ts.bookings),
		Profile:   NewProfileHandler(nil),
		User:      NewUserHandler(nil),
		Assistant: NewAssistantHandler(&stubAssistant{}),
		Admin:     NewAdminHandler(ts.admin),
	}, ts.verifier, 5*time.Second)
	return ts
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.verifier.Sign(&entity.Identity{UserID: userID, Email: userID + "@example.com", EmailVerified: true},
		"railbook-idp", "railbook", time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestHealth тестирует проверку работоспособности
func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

// TestAuthentication тестирует проверку токена
func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	other := middleware.NewTokenVerifier("another-secret", "railbook-idp", "railbook")
	forged, err := other.Sign(&entity.Identity{UserID: "user-1"}, "railbook-idp", "railbook", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := ts.verifier.Sign(&entity.Identity{UserID: "user-1"}, "someone-else", "railbook", time.Hour)
	require.NoError(t, err)

	expired, err := ts.verifier.Sign(&entity.Identity{UserID: "user-1"}, "railbook-idp", "railbook", -time.Minute)
	require.NoError(t, err)

	noSubject, err := ts.verifier.Sign(&entity.Identity{}, "railbook-idp", "railbook", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing token", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "forged signature", header: "Bearer " + forged, status: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + wrongIssuer, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + ts.token(t, "user-1"), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, entity.KindUnauthenticated, decodeError(t, w).Kind)
			}
		})
	}

	require.NotNil(t, ts.bookings.seen)
	assert.Equal(t, "user-1", ts.bookings.seen.UserID)
	assert.True(t, ts.bookings.seen.EmailVerified)
}

// TestPublicCatalog тестирует анонимный доступ к каталогу
func TestPublicCatalog(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/trains?from=Mumbai&to=Delhi", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, float64(1), resp.Meta.(map[string]interface{})["count"])

	w = ts.do(http.MethodGet, "/api/v1/trains?class=ZZ", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/trains/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/trains/7", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, entity.KindNotFound, decodeError(t, w).Kind)
}

// TestErrorMapping тестирует соответствие видов ошибок HTTP-статусам
func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{name: "validation", err: entity.NewValidationError("bad", entity.ErrInvalidInput), status: http.StatusBadRequest},
		{name: "capacity", err: entity.NewCapacityError(entity.ErrPassengerMismatch), status: http.StatusConflict},
		{name: "authorization", err: entity.NewAuthorizationError("not yours"), status: http.StatusForbidden},
		{name: "unauthenticated", err: entity.ErrUnauthenticated, status: http.StatusUnauthorized},
		{name: "not found", err: entity.ErrBookingNotFound, status: http.StatusNotFound},
		{name: "store write", err: entity.NewStoreWriteError(errors.New("conn reset")), status: http.StatusServiceUnavailable, retryable: true},
		{name: "assistant disabled", err: entity.ErrAssistantDisabled, status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.bookings.err = tt.err

			w := ts.do(http.MethodGet, "/api/v1/bookings", ts.token(t, "user-1"), "")
			assert.Equal(t, tt.status, w.Code)

			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.retryable, resp.Retryable)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", resp.Error)
			}
		})
	}
}

// TestInternalErrorHidden тестирует, что текст ошибки драйвера уходит в лог, а не клиенту
func TestInternalErrorHidden(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	ts := newTestServer(t)
	ts.bookings.err = fmt.Errorf("failed to list bookings: %w", errors.New(`pq: relation "bookings" does not exist`))

	w := ts.do(http.MethodGet, "/api/v1/bookings", ts.token(t, "user-1"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.NotContains(t, w.Body.String(), "relation")

	resp := decodeError(t, w)
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, entity.KindInternal, resp.Kind)

	var logged *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Unhandled error" {
			logged = entry
		}
	}
	require.NotNil(t, logged)
	assert.Equal(t, logrus.ErrorLevel, logged.Level)
	assert.Contains(t, fmt.Sprint(logged.Data[logrus.ErrorKey]), `relation "bookings" does not exist`)
	assert.Equal(t, "/api/v1/bookings", logged.Data["path"])
}

// TestConfirmStoreFailure тестирует ответ на ошибку записи бронирования
func TestConfirmStoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout.confirmErr = entity.NewStoreWriteError(errors.New("connection refused"))

	w := ts.do(http.MethodPost, "/api/v1/checkouts/s-1/confirm", ts.token(t, "user-1"), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.True(t, resp.Retryable)
	assert.Equal(t, entity.KindStoreWrite, resp.Kind)
	assert.NotContains(t, resp.Error, "connection refused")

	ts.checkout.confirmErr = nil
	w = ts.do(http.MethodPost, "/api/v1/checkouts/s-1/confirm", ts.token(t, "user-1"), "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "1234567890")
}

// TestAddPassengerBinding тестирует разбор формы пассажира
func TestAddPassengerBinding(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")

	w := ts.do(http.MethodPost, "/api/v1/checkouts/s-1/passengers", tok, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty form reaches the service, which rejects it")

	w = ts.do(http.MethodPost, "/api/v1/checkouts/s-1/passengers", tok, `{"name":"Ravi","age":34,"gender":"male"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/checkouts/s-1/passengers", tok, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestCancelBookingIdempotent тестирует повторную отмену через HTTP
func TestCancelBookingIdempotent(t *testing.T) {
	ts := newTestServer(t)
	cancelled := &entity.Booking{ID: "b-1", Status: entity.BookingStatusCancelled, Fare: entity.Fare{TotalPrice: 481.8}}
	ts.bookings.cancel = func(id string) (*entity.Booking, error) { return cancelled, nil }

	for i := 0; i < 2; i++ {
		w := ts.do(http.MethodPost, "/api/v1/bookings/b-1/cancel", ts.token(t, "user-1"), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
		assert.Contains(t, w.Body.String(), `"total_price":481.8`)
	}

	ts.bookings.cancel = func(id string) (*entity.Booking, error) {
		return nil, entity.NewValidationError("the journey is already completed", entity.ErrBookingCompleted)
	}
	w := ts.do(http.MethodPost, "/api/v1/bookings/b-1/cancel", ts.token(t, "user-1"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestDownloadTicket тестирует выгрузку PDF
func TestDownloadTicket(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/bookings/b-1/ticket", ts.token(t, "user-1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", "ticket-1234567890.pdf"), w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

// TestListBookingsQuery тестирует проверку параметров запроса
func TestListBookingsQuery(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "user-1")

	w := ts.do(http.MethodGet, "/api/v1/bookings?status=completed", tok, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = ts.do(http.MethodGet, "/api/v1/bookings?status=expired", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/bookings?limit=1000", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestAssistantDisabledResponds503 тестирует выключенного помощника
func TestAssistantDisabledResponds503(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/assistant/chat", "", `{"message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, entity.KindUnavailable, decodeError(t, w).Kind)

	w = ts.do(http.MethodPost, "/api/v1/assistant/chat", "", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestCORSPreflight тестирует preflight-запрос
func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodOptions, "/api/v1/bookings", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

// TestAdminQueueRoutes тестирует маршруты DLQ для администратора и обычного пользователя
func TestAdminQueueRoutes(t *testing.T) {
	ts := newTestServer(t)
	adminToken, err := ts.verifier.Sign(&entity.Identity{UserID: "ops-1", Email: "ops@example.com", EmailVerified: true, Roles: []string{"admin"}},
		"railbook-idp", "railbook", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "anonymous overview", method: http.MethodGet, path: "/api/v1/admin/queue", status: http.StatusUnauthorized},
		{name: "customer overview", method: http.MethodGet, path: "/api/v1/admin/queue", token: ts.token(t, "user-1"), status: http.StatusForbidden},
		{name: "customer list", method: http.MethodGet, path: "/api/v1/admin/queue/dlq", token: ts.token(t, "user-1"), status: http.StatusForbidden},
		{name: "admin overview", method: http.MethodGet, path: "/api/v1/admin/queue", token: adminToken, status: http.StatusOK},
		{name: "admin list", method: http.MethodGet, path: "/api/v1/admin/queue/dlq?limit=5", token: adminToken, status: http.StatusOK},
		{name: "admin list bad limit", method: http.MethodGet, path: "/api/v1/admin/queue/dlq?limit=0", token: adminToken, status: http.StatusBadRequest},
		{name: "admin requeue", method: http.MethodPost, path: "/api/v1/admin/queue/dlq/task_1/requeue", token: adminToken, status: http.StatusAccepted},
		{name: "admin requeue unknown", method: http.MethodPost, path: "/api/v1/admin/queue/dlq/task_9/requeue", token: adminToken, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, 5, ts.admin.limit)

	w := ts.do(http.MethodGet, "/api/v1/admin/queue/dlq", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"task_1"`)
	assert.Contains(t, w.Body.String(), "telegram: timeout")
}
