package repository

import "errors"

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrInsufficientTickets is returned when an event has fewer available
// tickets than requested. Inventory is left unchanged.
var ErrInsufficientTickets = errors.New("not enough tickets available")

// ErrInvalidQuantity is returned when a reservation asks for zero or fewer tickets.
var ErrInvalidQuantity = errors.New("tickets must be a positive integer")
