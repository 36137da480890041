package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/railbook/internal/booking"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/fare"
	"github.com/ds124wfegd/railbook/internal/seatlayout"
	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/ds124wfegd/railbook/pkg/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testTrain() *entity.Train {
	return &entity.Train{
		ID:            1,
		Number:        "12951",
		Name:          "Rajdhani Express",
		Origin:        "Mumbai",
		Destination:   "New Delhi",
		DepartureTime: "17:00",
		ArrivalTime:   "08:35",
		Duration:      "15h 35m",
		BasePrice:     450,
		Classes:       entity.FareClasses{entity.ClassSleeper, entity.ClassThirdAC},
	}
}

func travelDay(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func mustDate(t *testing.T, days int) entity.TravelDate {
	t.Helper()
	d, err := entity.ParseTravelDate(travelDay(days))
	require.NoError(t, err)
	return d
}

func owner() *entity.Identity {
	return &entity.Identity{UserID: "user-1", Email: "user@example.com", EmailVerified: true}
}

func stranger() *entity.Identity {
	return &entity.Identity{UserID: "user-2", Email: "other@example.com", EmailVerified: true}
}

type fakeTrainRepo struct {
	trains []*entity.Train
}

func (f *fakeTrainRepo) Upsert(_ context.Context, train *entity.Train) error {
	f.trains = append(f.trains, train)
	return nil
}

func (f *fakeTrainRepo) GetByID(_ context.Context, id int64) (*entity.Train, error) {
	for _, t := range f.trains {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, entity.ErrTrainNotFound
}

func (f *fakeTrainRepo) GetByNumber(_ context.Context, number string) (*entity.Train, error) {
	for _, t := range f.trains {
		if t.Number == number {
			return t, nil
		}
	}
	return nil, entity.ErrTrainNotFound
}

func (f *fakeTrainRepo) GetAll(_ context.Context) ([]*entity.Train, error) {
	return f.trains, nil
}

func (f *fakeTrainRepo) Search(_ context.Context, filter *entity.TrainSearch) ([]*entity.Train, error) {
	out := []*entity.Train{}
	for _, t := range f.trains {
		if filter.Origin != "" && !strings.EqualFold(t.Origin, filter.Origin) {
			continue
		}
		if filter.Destination != "" && !strings.EqualFold(t.Destination, filter.Destination) {
			continue
		}
		if filter.Class != "" && !t.Supports(filter.Class) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]*entity.Booking
	createErr error
	cancelErr error
	creates   int
	cancels   int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*entity.Booking)}
}

func (f *fakeBookingRepo) Create(_ context.Context, b *entity.Booking) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return false, f.createErr
	}
	for _, existing := range f.bookings {
		if b.CheckoutID != "" && existing.CheckoutID == b.CheckoutID {
			*b = *existing
			return false, nil
		}
	}
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	cp := *b
	f.bookings[b.ID] = &cp
	return true, nil
}

func (f *fakeBookingRepo) add(b *entity.Booking) *entity.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return b
}

func (f *fakeBookingRepo) GetByID(_ context.Context, id string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepo) GetByPNR(_ context.Context, pnr string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.PNR == pnr {
			cp := *b
			return &cp, nil
		}
	}
	return nil, entity.ErrBookingNotFound
}

func (f *fakeBookingRepo) ListByUser(_ context.Context, filter *entity.BookingFilter) ([]*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entity.Booking{}
	for _, b := range f.bookings {
		if b.UserID == filter.UserID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TravelDate.After(out[j].TravelDate.Time) })
	return out, nil
}

func (f *fakeBookingRepo) Cancel(_ context.Context, id string, cancelledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if f.cancelErr != nil {
		return f.cancelErr
	}
	b, ok := f.bookings[id]
	if !ok || b.Status != entity.BookingStatusUpcoming {
		return entity.ErrBookingNotFound
	}
	b.Status = entity.BookingStatusCancelled
	b.CancelledAt = &cancelledAt
	return nil
}

func (f *fakeBookingRepo) GetDeparting(_ context.Context, _, _ time.Time) ([]*entity.BookingReminder, error) {
	return nil, nil
}

func (f *fakeBookingRepo) MarkReminded(_ context.Context, _ string) error {
	return nil
}

type fakeProfileRepo struct {
	profiles []*entity.SavedProfile
	nextID   int64
}

func (f *fakeProfileRepo) Create(_ context.Context, p *entity.SavedProfile) error {
	f.nextID++
	p.ID = f.nextID
	f.profiles = append(f.profiles, p)
	return nil
}

func (f *fakeProfileRepo) GetByID(_ context.Context, userID string, id int64) (*entity.SavedProfile, error) {
	for _, p := range f.profiles {
		if p.ID == id && p.UserID == userID {
			return p, nil
		}
	}
	return nil, entity.ErrProfileNotFound
}

func (f *fakeProfileRepo) ListByUser(_ context.Context, userID string) ([]*entity.SavedProfile, error) {
	out := []*entity.SavedProfile{}
	for _, p := range f.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) Delete(_ context.Context, userID string, id int64) error {
	for i, p := range f.profiles {
		if p.ID == id && p.UserID == userID {
			f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
			return nil
		}
	}
	return entity.ErrProfileNotFound
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User)}
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *entity.User) error {
	if existing, ok := f.users[u.ID]; ok {
		existing.Email = u.Email
		return nil
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByTelegramID(_ context.Context, telegramID string) (*entity.User, error) {
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (f *fakeUserRepo) UpdateTelegramID(_ context.Context, userID, telegramID string) error {
	u, ok := f.users[userID]
	if !ok {
		return entity.ErrUserNotFound
	}
	u.TelegramID = telegramID
	return nil
}

// memorySessions round-trips through JSON like the Redis store does
type memorySessions struct {
	data map[string][]byte
	// failConfirmed makes saving a confirmed flow fail
	failConfirmed bool
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[string][]byte)}
}

func (m *memorySessions) Save(_ context.Context, flow *booking.Flow) error {
	if m.failConfirmed && flow.State == booking.StateConfirmed {
		return errors.New("redis: connection pool timeout")
	}
	raw, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	m.data[flow.ID] = raw
	return nil
}

func (m *memorySessions) Get(_ context.Context, id string) (*booking.Flow, error) {
	raw, ok := m.data[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	var flow booking.Flow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	delete(m.data, id)
	return nil
}

type memoryHolds struct {
	owners map[string]string
	err    error
	calls  int
}

func newMemoryHolds() *memoryHolds {
	return &memoryHolds{owners: make(map[string]string)}
}

func (m *memoryHolds) Hold(_ context.Context, key, owner string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if current, ok := m.owners[key]; ok && current != owner {
		return false, nil
	}
	m.owners[key] = owner
	return true, nil
}

func (m *memoryHolds) Release(_ context.Context, key, owner string) error {
	if m.owners[key] == owner {
		delete(m.owners, key)
	}
	return nil
}

func (m *memoryHolds) Owners(_ context.Context, keys []string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, k := range keys {
		if o, ok := m.owners[k]; ok {
			out[k] = o
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return r.err
}

type recordingTasks struct {
	tasks []*Task
}

func (r *recordingTasks) Publish(_ context.Context, task *Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}

type fakeCompleter struct {
	response string
	err      error
	calls    [][]llm.Message
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, messages []llm.Message, out interface{}) error {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return f.err
	}
	if err := json.Unmarshal([]byte(f.response), out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type checkoutFixture struct {
	svc      CheckoutService
	bookings *fakeBookingRepo
	profiles *fakeProfileRepo
	users    *fakeUserRepo
	sessions *memorySessions
	holds    *memoryHolds
	events   *recordingPublisher
	tasks    *recordingTasks
}

func newCheckoutFixture(cfg CheckoutConfig) *checkoutFixture {
	fx := &checkoutFixture{
		bookings: newFakeBookingRepo(),
		profiles: &fakeProfileRepo{},
		users:    newFakeUserRepo(),
		sessions: newMemorySessions(),
		holds:    newMemoryHolds(),
		events:   &recordingPublisher{},
		tasks:    &recordingTasks{},
	}
	fx.svc = NewCheckoutService(CheckoutDeps{
		Trains:    &fakeTrainRepo{trains: []*entity.Train{testTrain()}},
		Bookings:  fx.bookings,
		Profiles:  fx.profiles,
		Users:     fx.users,
		Generator: seatlayout.NewGenerator(seatlayout.WithAvailability(1)),
		Fares:     fare.NewDefaultCalculator(),
		Sessions:  fx.sessions,
		Holds:     fx.holds,
		Events:    fx.events,
		Tasks:     fx.tasks,
	}, cfg)
	return fx
}
