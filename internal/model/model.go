// Package model defines the core domain types for the ticket booking system.
package model

import "time"

// Event represents a bookable occurrence with a fixed ticket capacity.
type Event struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Location         string `json:"location"`
	Date             string `json:"date"`
	TotalTickets     int    `json:"total_tickets"`
	AvailableTickets int    `json:"available_tickets"`
}

// Booking records tickets reserved by a user against an event.
type Booking struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	UserName      string    `json:"user_name"`
	TicketsBooked int       `json:"tickets_booked"`
	CreatedAt     time.Time `json:"-"`
}

// BookingView is a booking joined with the name of its event.
type BookingView struct {
	ID            int64  `json:"id"`
	UserName      string `json:"user_name"`
	TicketsBooked int    `json:"tickets_booked"`
	Name          string `json:"name"`
}

// MaxTickets bounds ticket counts to the INTEGER columns that store them.
const MaxTickets = 1<<31 - 1

// CreateEventRequest is the payload for adding a new event.
// TotalTickets is a pointer so that a missing field can be told apart from 0.
// Strings are stored as sent; notblank only rejects whitespace-only values.
type CreateEventRequest struct {
	Name         string `json:"name" validate:"required,notblank"`
	Location     string `json:"location" validate:"required,notblank"`
	Date         string `json:"date" validate:"required,notblank"`
	TotalTickets *int   `json:"total_tickets" validate:"required,gte=0,lte=2147483647"`
}

// BookTicketRequest is the payload for booking tickets.
type BookTicketRequest struct {
	EventID  *int64 `json:"event_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,notblank"`
	Tickets  *int   `json:"tickets" validate:"required,lte=2147483647"`
}

// MessageResponse is the JSON envelope for successful writes.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Reservation is the result of a committed booking: the new booking row plus
// the state of its event immediately after the decrement.
type Reservation struct {
	Booking          Booking
	EventName        string
	AvailableTickets int
}

// SoldOut reports whether this reservation took the event's last tickets.
func (r Reservation) SoldOut() bool {
	return r.AvailableTickets <= 0
}
