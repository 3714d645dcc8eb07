package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/cache"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/service"
)

func intPtr(n int) *int { return &n }
func idPtr(n int64) *int64 { return &n }

func newMemoryService() *service.EventService {
	store := repository.NewMemoryStore()
	return service.NewEventService(store, store)
}

func createEvent(t *testing.T, svc *service.EventService, name string, total int) *model.Event {
	t.Helper()
	ev, err := svc.CreateEvent(context.Background(), model.CreateEventRequest{
		Name: name, Location: "Arena", Date: "2025-01-01", TotalTickets: intPtr(total),
	})
	require.NoError(t, err)
	return ev
}

func book(svc *service.EventService, eventID int64, user string, tickets int) (*model.Reservation, error) {
	return svc.BookTickets(context.Background(), model.BookTicketRequest{
		EventID: idPtr(eventID), UserName: user, Tickets: intPtr(tickets),
	})
}

func TestCreateEvent_Validation(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	tests := []struct {
		name  string
		req   model.CreateEventRequest
		field string
	}{
		{name: "missing name", req: model.CreateEventRequest{Location: "Arena", Date: "d", TotalTickets: intPtr(1)}, field: "name"},
		{name: "blank location", req: model.CreateEventRequest{Name: "n", Location: "  ", Date: "d", TotalTickets: intPtr(1)}, field: "location"},
		{name: "missing date", req: model.CreateEventRequest{Name: "n", Location: "l", TotalTickets: intPtr(1)}, field: "date"},
		{name: "missing total", req: model.CreateEventRequest{Name: "n", Location: "l", Date: "d"}, field: "total_tickets"},
		{name: "negative total", req: model.CreateEventRequest{Name: "n", Location: "l", Date: "d", TotalTickets: intPtr(-1)}, field: "total_tickets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tt.req)
			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	events, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateEvent_ZeroTicketsAllowed(t *testing.T) {
	svc := newMemoryService()
	ev := createEvent(t, svc, "Sold out", 0)
	assert.Equal(t, 0, ev.AvailableTickets)

	_, err := book(svc, ev.ID, "alice", 1)
	assert.ErrorIs(t, err, repository.ErrInsufficientTickets)
}

func TestBookTickets_ReadAfterWrite(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()
	ev := createEvent(t, svc, "Concert", 5)

	_, err := book(svc, ev.ID, "alice", 2)
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].AvailableTickets)

	views, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].UserName)
	assert.Equal(t, 2, views[0].TicketsBooked)
	assert.Equal(t, "Concert", views[0].Name)
}

func TestBookTickets_UnknownEventLeavesNoBooking(t *testing.T) {
	svc := newMemoryService()
	createEvent(t, svc, "Concert", 5)

	_, err := book(svc, 42, "alice", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	views, err := svc.ListBookings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestBookTickets_Boundary(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()
	over := createEvent(t, svc, "Over", 4)
	exact := createEvent(t, svc, "Exact", 4)

	_, err := book(svc, over.ID, "bob", 5)
	assert.ErrorIs(t, err, repository.ErrInsufficientTickets)
	got, err := svc.GetEvent(ctx, over.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableTickets)

	_, err = book(svc, exact.ID, "bob", 4)
	require.NoError(t, err)
	got, err = svc.GetEvent(ctx, exact.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableTickets)
}

func TestBookTickets_Scenario(t *testing.T) {
	svc := newMemoryService()
	ev := createEvent(t, svc, "Concert", 100)
	assert.Equal(t, 100, ev.AvailableTickets)

	res, err := book(svc, ev.ID, "bob", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AvailableTickets)
	assert.True(t, res.SoldOut())

	_, err = book(svc, ev.ID, "carol", 1)
	assert.ErrorIs(t, err, repository.ErrInsufficientTickets)

	// Invalid quantity is reported ahead of exhausted inventory.
	_, err = book(svc, ev.ID, "carol", 0)
	assert.ErrorIs(t, err, repository.ErrInvalidQuantity)
}

func TestBookTickets_Validation(t *testing.T) {
	svc := newMemoryService()
	ev := createEvent(t, svc, "Concert", 5)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   model.BookTicketRequest
		field string
	}{
		{name: "missing event", req: model.BookTicketRequest{UserName: "a", Tickets: intPtr(1)}, field: "event_id"},
		{name: "blank user", req: model.BookTicketRequest{EventID: idPtr(ev.ID), UserName: " ", Tickets: intPtr(1)}, field: "user_name"},
		{name: "missing tickets", req: model.BookTicketRequest{EventID: idPtr(ev.ID), UserName: "a"}, field: "tickets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BookTickets(ctx, tt.req)
			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := book(svc, ev.ID, "a", -3)
	assert.ErrorIs(t, err, repository.ErrInvalidQuantity)
}

func TestBookTickets_ConcurrentNoOversell(t *testing.T) {
	svc := newMemoryService()
	const capacity, attempts = 30, 150
	ev := createEvent(t, svc, "Popular", capacity)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = book(svc, ev.ID, fmt.Sprintf("user-%d", i), 1)
		}(i)
	}
	wg.Wait()

	var ok, full int
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrInsufficientTickets):
			full++
		default:
			t.Fatalf("unexpected error for user-%d: %v", i, err)
		}
	}
	assert.Equal(t, capacity, ok)
	assert.Equal(t, attempts-capacity, full)

	got, err := svc.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableTickets)
	assert.Equal(t, capacity, got.TotalTickets)
}

type mockBookings struct{ mock.Mock }

func (m *mockBookings) Reserve(ctx context.Context, eventID int64, userName string, tickets int) (*model.Reservation, error) {
	args := m.Called(ctx, eventID, userName, tickets)
	res, _ := args.Get(0).(*model.Reservation)
	return res, args.Error(1)
}

func (m *mockBookings) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	args := m.Called(ctx)
	views, _ := args.Get(0).([]model.BookingView)
	return views, args.Error(1)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Generation(ctx context.Context) (int64, bool) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Bool(1)
}
func (m *mockCache) Events(ctx context.Context) ([]model.Event, bool) {
	args := m.Called(ctx)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Bool(1)
}
func (m *mockCache) StoreEvents(ctx context.Context, gen int64, events []model.Event) {
	m.Called(ctx, gen, events)
}
func (m *mockCache) Bookings(ctx context.Context) ([]model.BookingView, bool) {
	args := m.Called(ctx)
	views, _ := args.Get(0).([]model.BookingView)
	return views, args.Bool(1)
}
func (m *mockCache) StoreBookings(ctx context.Context, gen int64, views []model.BookingView) {
	m.Called(ctx, gen, views)
}
func (m *mockCache) Invalidate(ctx context.Context) { m.Called(ctx) }

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PublishBookingConfirmed(ctx context.Context, res model.Reservation) error {
	return m.Called(ctx, res).Error(0)
}

func TestBookTickets_InvalidatesCacheAndNotifies(t *testing.T) {
	bookings := &mockBookings{}
	listCache := &mockCache{}
	notifier := &mockNotifier{}
	svc := service.NewEventService(repository.NewMemoryStore(), bookings,
		service.WithCache(listCache), service.WithNotifier(notifier))

	res := &model.Reservation{Booking: model.Booking{ID: 1, EventID: 9, UserName: "alice", TicketsBooked: 2}, EventName: "Concert", AvailableTickets: 3}
	bookings.On("Reserve", mock.Anything, int64(9), " alice ", 2).Return(res, nil)
	listCache.On("Invalidate", mock.Anything).Once()
	notifier.On("PublishBookingConfirmed", mock.Anything, *res).Return(errors.New("broker down")).Once()

	got, err := book(svc, 9, " alice ", 2)
	require.NoError(t, err, "a failed notification must not fail a committed booking")
	assert.Equal(t, res, got)

	bookings.AssertExpectations(t)
	listCache.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestBookTickets_FailureSkipsSideEffects(t *testing.T) {
	bookings := &mockBookings{}
	listCache := &mockCache{}
	notifier := &mockNotifier{}
	svc := service.NewEventService(repository.NewMemoryStore(), bookings,
		service.WithCache(listCache), service.WithNotifier(notifier))

	storageErr := errors.New("connection reset")
	bookings.On("Reserve", mock.Anything, int64(9), "alice", 2).Return(nil, storageErr)

	_, err := book(svc, 9, "alice", 2)
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, repository.ErrNotFound)

	listCache.AssertNotCalled(t, "Invalidate", mock.Anything)
	notifier.AssertNotCalled(t, "PublishBookingConfirmed", mock.Anything, mock.Anything)
}

func TestListBookings_UsesCache(t *testing.T) {
	bookings := &mockBookings{}
	listCache := &mockCache{}
	svc := service.NewEventService(repository.NewMemoryStore(), bookings, service.WithCache(listCache))
	ctx := context.Background()

	views := []model.BookingView{{ID: 1, UserName: "alice", TicketsBooked: 2, Name: "Concert"}}
	listCache.On("Bookings", ctx).Return(nil, false).Once()
	listCache.On("Generation", ctx).Return(int64(4), true).Once()
	bookings.On("ListBookings", ctx).Return(views, nil).Once()
	listCache.On("StoreBookings", ctx, int64(4), views).Once()
	listCache.On("Bookings", ctx).Return(views, true).Once()

	first, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	second, err := svc.ListBookings(ctx)
	require.NoError(t, err)

	assert.Equal(t, views, first)
	assert.Equal(t, views, second)
	bookings.AssertNumberOfCalls(t, "ListBookings", 1)
	listCache.AssertExpectations(t)
}

func TestListBookings_NoGenerationSkipsStore(t *testing.T) {
	bookings := &mockBookings{}
	listCache := &mockCache{}
	svc := service.NewEventService(repository.NewMemoryStore(), bookings, service.WithCache(listCache))
	ctx := context.Background()

	views := []model.BookingView{{ID: 1, UserName: "alice", TicketsBooked: 2, Name: "Concert"}}
	listCache.On("Bookings", ctx).Return(nil, false).Once()
	listCache.On("Generation", ctx).Return(int64(0), false).Once()
	bookings.On("ListBookings", ctx).Return(views, nil).Once()

	got, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, views, got)
	listCache.AssertNotCalled(t, "StoreBookings", mock.Anything, mock.Anything, mock.Anything)
}

// pausingStore stops one ListEvents call after it has read the store, until
// release is closed.
type pausingStore struct {
	*repository.MemoryStore
	pause   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := p.MemoryStore.ListEvents(ctx)
	if p.pause.CompareAndSwap(true, false) {
		close(p.read)
		<-p.release
	}
	return events, err
}

func TestListEvents_ReadOverlappingBookingIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &pausingStore{
		MemoryStore: repository.NewMemoryStore(),
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := service.NewEventService(store, store, service.WithCache(cache.New(rdb, time.Minute, "overlap")))
	ctx := context.Background()
	ev := createEvent(t, svc, "Concert", 5)

	store.pause.Store(true)
	type listResult struct {
		events []model.Event
		err    error
	}
	done := make(chan listResult, 1)
	go func() {
		events, err := svc.ListEvents(ctx)
		done <- listResult{events, err}
	}()

	<-store.read
	_, err := book(svc, ev.ID, "alice", 2)
	require.NoError(t, err)
	close(store.release)

	slow := <-done
	require.NoError(t, slow.err)
	require.Len(t, slow.events, 1)
	assert.Equal(t, 5, slow.events[0].AvailableTickets)

	events, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].AvailableTickets)

	// The fresh list is cached and served on the next read.
	assert.True(t, mr.Exists("overlap:events"))
	events, err = svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, events[0].AvailableTickets)
}

func TestBookTickets_UserNameStoredAsSent(t *testing.T) {
	svc := newMemoryService()
	ev := createEvent(t, svc, "Concert", 5)

	res, err := book(svc, ev.ID, " alice ", 1)
	require.NoError(t, err)
	assert.Equal(t, " alice ", res.Booking.UserName)

	views, err := svc.ListBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, " alice ", views[0].UserName)
}

func TestBookTickets_OversizedQuantityRejected(t *testing.T) {
	svc := newMemoryService()
	ev := createEvent(t, svc, "Concert", 5)

	_, err := book(svc, ev.ID, "alice", model.MaxTickets+1)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tickets", verr.Field)

	_, err = svc.CreateEvent(context.Background(), model.CreateEventRequest{
		Name: "Huge", Location: "Arena", Date: "2025-01-01", TotalTickets: intPtr(model.MaxTickets + 1),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total_tickets", verr.Field)
}
