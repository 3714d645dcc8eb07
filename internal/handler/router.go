package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the full HTTP surface with its middleware stack.
func NewRouter(h *EventHandler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS(corsOrigins))

	r.Get("/health", HealthCheck)

	r.Post("/add_event", h.CreateEvent)
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Post("/book_ticket", h.BookTickets)
	r.Get("/bookings", h.ListBookings)

	return r
}
