// Package service implements validation and orchestration between HTTP
// handlers and the reservation core.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/repository"
)

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
}

// BookingStore is the reservation core's booking side.
type BookingStore interface {
	Reserve(ctx context.Context, eventID int64, userName string, tickets int) (*model.Reservation, error)
	ListBookings(ctx context.Context) ([]model.BookingView, error)
}

// ListCache caches list results between writes. Generation is read before
// the store so that a list loaded before an Invalidate is never stored after
// it.
type ListCache interface {
	Generation(ctx context.Context) (int64, bool)
	Events(ctx context.Context) ([]model.Event, bool)
	StoreEvents(ctx context.Context, gen int64, events []model.Event)
	Bookings(ctx context.Context) ([]model.BookingView, bool)
	StoreBookings(ctx context.Context, gen int64, views []model.BookingView)
	Invalidate(ctx context.Context)
}

// BookingNotifier announces committed bookings.
type BookingNotifier interface {
	PublishBookingConfirmed(ctx context.Context, res model.Reservation) error
}

const sideEffectTimeout = 5 * time.Second

// EventService orchestrates event and booking operations.
type EventService struct {
	events   EventStore
	bookings BookingStore
	cache    ListCache
	notifier BookingNotifier
}

// Option configures an EventService.
type Option func(*EventService)

// WithCache serves list reads through c.
func WithCache(c ListCache) Option {
	return func(s *EventService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithNotifier publishes every committed booking through n.
func WithNotifier(n BookingNotifier) Option {
	return func(s *EventService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, bookings BookingStore, opts ...Option) *EventService {
	s := &EventService{
		events:   events,
		bookings: bookings,
		cache:    noCache{},
		notifier: noNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	event, err := s.events.CreateEvent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.invalidate(ctx)
	return event, nil
}

// ListEvents returns all events in insertion order.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	if events, ok := s.cache.Events(ctx); ok {
		return events, nil
	}
	gen, cacheable := s.cache.Generation(ctx)
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if cacheable {
		s.cache.StoreEvents(ctx, gen, events)
	}
	return events, nil
}

// GetEvent returns a single event by id.
func (s *EventService) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// BookTickets validates the request and hands the reservation to the core.
// repository.ErrNotFound, repository.ErrInsufficientTickets and
// repository.ErrInvalidQuantity are returned unwrapped.
func (s *EventService) BookTickets(ctx context.Context, req model.BookTicketRequest) (*model.Reservation, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	res, err := s.bookings.Reserve(ctx, *req.EventID, req.UserName, *req.Tickets)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) ||
			errors.Is(err, repository.ErrInsufficientTickets) ||
			errors.Is(err, repository.ErrInvalidQuantity) {
			return nil, err
		}
		return nil, fmt.Errorf("book tickets: %w", err)
	}

	s.invalidate(ctx)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.notifier.PublishBookingConfirmed(pubCtx, *res); err != nil {
		log.Printf("booking %d committed but notification failed: %v", res.Booking.ID, err)
	}
	return res, nil
}

// ListBookings returns all bookings joined with their event name.
func (s *EventService) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	if views, ok := s.cache.Bookings(ctx); ok {
		return views, nil
	}
	gen, cacheable := s.cache.Generation(ctx)
	views, err := s.bookings.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if cacheable {
		s.cache.StoreBookings(ctx, gen, views)
	}
	return views, nil
}

// invalidate runs after a commit, so it must not be cut short by a client
// that has already gone away.
func (s *EventService) invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	s.cache.Invalidate(ctx)
}

type noCache struct{}

func (noCache) Generation(context.Context) (int64, bool) { return 0, false }
func (noCache) Events(context.Context) ([]model.Event, bool) { return nil, false }
func (noCache) StoreEvents(context.Context, int64, []model.Event) {}
func (noCache) Bookings(context.Context) ([]model.BookingView, bool) { return nil, false }
func (noCache) StoreBookings(context.Context, int64, []model.BookingView) {}
func (noCache) Invalidate(context.Context) {}

type noNotifier struct{}

func (noNotifier) PublishBookingConfirmed(context.Context, model.Reservation) error { return nil }
