// Package repository implements the reservation core: every read and write of
// events and bookings. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent inserts a new event with all of its tickets available.
func (r *EventRepository) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		Name:             req.Name,
		Location:         req.Location,
		Date:             req.Date,
		TotalTickets:     *req.TotalTickets,
		AvailableTickets: *req.TotalTickets,
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO events (name, location, date, total_tickets, available_tickets)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING id`,
		event.Name, event.Location, event.Date, event.TotalTickets,
	).Scan(&event.ID)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events in insertion order.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, location, date, total_tickets, available_tickets
		 FROM events
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Location, &e.Date, &e.TotalTickets, &e.AvailableTickets); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, name, location, date, total_tickets, available_tickets
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.Location, &e.Date, &e.TotalTickets, &e.AvailableTickets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// Reserve decrements an event's inventory and records the booking in one
// transaction.
//
// A read-then-write sequence is unsafe here:
//
//	tx A: SELECT available_tickets WHERE id = X  → 1
//	tx B: SELECT available_tickets WHERE id = X  → 1
//	tx A: 1 >= 1, UPDATE available_tickets = 0, INSERT booking
//	tx B: 1 >= 1, UPDATE available_tickets = 0, INSERT booking
//
// Two bookings for one ticket. Instead the availability check lives in the
// WHERE clause of the UPDATE itself. The UPDATE takes a row-level lock on the
// event, so a concurrent Reserve on the same event blocks until this
// transaction ends and then re-evaluates the predicate against the committed
// value. Reservations on other events lock other rows and never wait on us.
// The booking insert runs while the lock is held, so the decrement and the
// booking become visible together at COMMIT or not at all.
func (r *BookingRepository) Reserve(ctx context.Context, eventID int64, userName string, tickets int) (*model.Reservation, error) {
	if tickets <= 0 {
		return nil, ErrInvalidQuantity
	}
	// available_tickets is an INTEGER, so no event can satisfy this request.
	if tickets > model.MaxTickets {
		return nil, refusal(ctx, r.db, eventID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	res := &model.Reservation{}
	err = tx.QueryRow(ctx,
		`UPDATE events
		 SET available_tickets = available_tickets - $2
		 WHERE id = $1 AND available_tickets >= $2
		 RETURNING name, available_tickets`,
		eventID, tickets,
	).Scan(&res.EventName, &res.AvailableTickets)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decrement available_tickets: %w", err)
		}
		return nil, refusal(ctx, tx, eventID)
	}

	res.Booking = model.Booking{
		EventID:       eventID,
		UserName:      userName,
		TicketsBooked: tickets,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO bookings (event_id, user_name, tickets_booked)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		eventID, userName, tickets,
	).Scan(&res.Booking.ID, &res.Booking.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// refusal explains a Reserve that changed nothing. Events are never deleted,
// so existence checked after the miss is stable.
func refusal(ctx context.Context, q rowQuerier, eventID int64) error {
	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientTickets
}

// ListBookings returns all bookings joined with their event's name, in
// insertion order.
func (r *BookingRepository) ListBookings(ctx context.Context) ([]model.BookingView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.user_name, b.tickets_booked, e.name
		 FROM bookings b
		 JOIN events e ON e.id = b.event_id
		 ORDER BY b.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var views []model.BookingView
	for rows.Next() {
		var v model.BookingView
		if err := rows.Scan(&v.ID, &v.UserName, &v.TicketsBooked, &v.Name); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return views, nil
}
