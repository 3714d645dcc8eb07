package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
)

// MemoryStore is an in-process reservation core for deployments where this
// process is the only writer. Each event carries its own mutex, so Reserve is
// serialized per event and reservations on different events run in parallel.
//
// Lock order: mu before an event's mu before bookingsMu. Nothing acquires mu
// while holding an event lock.
type MemoryStore struct {
	mu          sync.RWMutex
	events      map[int64]*memEvent
	order       []int64
	nextEventID int64

	bookingsMu    sync.RWMutex
	bookings      []memBooking
	nextBookingID int64

	now func() time.Time
}

type memEvent struct {
	mu    sync.Mutex
	event model.Event
}

type memBooking struct {
	booking   model.Booking
	eventName string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[int64]*memEvent),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent inserts a new event with all of its tickets available.
func (s *MemoryStore) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	e := &memEvent{event: model.Event{
		ID:               s.nextEventID,
		Name:             req.Name,
		Location:         req.Location,
		Date:             req.Date,
		TotalTickets:     *req.TotalTickets,
		AvailableTickets: *req.TotalTickets,
	}}
	s.events[e.event.ID] = e
	s.order = append(s.order, e.event.ID)

	out := e.event
	return &out, nil
}

// ListEvents returns a copy of every event in insertion order.
func (s *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.order))
	for _, id := range s.order {
		e := s.events[id]
		e.mu.Lock()
		events = append(events, e.event)
		e.mu.Unlock()
	}
	return events, nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := s.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	out := e.event
	e.mu.Unlock()
	return &out, nil
}

// Reserve checks and decrements an event's inventory and appends the booking
// while holding that event's lock.
func (s *MemoryStore) Reserve(ctx context.Context, eventID int64, userName string, tickets int) (*model.Reservation, error) {
	if tickets <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := s.lookup(eventID)
	if e == nil {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.event.AvailableTickets < tickets {
		return nil, ErrInsufficientTickets
	}
	e.event.AvailableTickets -= tickets

	s.bookingsMu.Lock()
	s.nextBookingID++
	b := model.Booking{
		ID:            s.nextBookingID,
		EventID:       eventID,
		UserName:      userName,
		TicketsBooked: tickets,
		CreatedAt:     s.now(),
	}
	s.bookings = append(s.bookings, memBooking{booking: b, eventName: e.event.Name})
	s.bookingsMu.Unlock()

	return &model.Reservation{
		Booking:          b,
		EventName:        e.event.Name,
		AvailableTickets: e.event.AvailableTickets,
	}, nil
}

// ListBookings returns every booking joined with its event name, in
// insertion order.
func (s *MemoryStore) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.bookingsMu.RLock()
	defer s.bookingsMu.RUnlock()

	views := make([]model.BookingView, 0, len(s.bookings))
	for _, b := range s.bookings {
		views = append(views, model.BookingView{
			ID:            b.booking.ID,
			UserName:      b.booking.UserName,
			TicketsBooked: b.booking.TicketsBooked,
			Name:          b.eventName,
		})
	}
	return views, nil
}

func (s *MemoryStore) lookup(id int64) *memEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events[id]
}
