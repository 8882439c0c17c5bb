package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clinic-care/internal/domain/errs"
	"clinic-care/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", getSessionHandler(svc))
		sr.Get("/bookings", listBookingsHandler(svc))
		sr.Post("/bookings", createBookingHandler(svc))
		sr.Post("/reconcile", reconcileHandler(svc))
	})

	r.Route("/bookings/{bookingID}", func(br chi.Router) {
		br.Get("/", getBookingHandler(svc))
		br.Patch("/", updateBookingStatusHandler(svc))
		br.Post("/cancel", cancelBookingHandler(svc))
		br.Delete("/", removeBookingHandler(svc))
	})
}

type createBookingRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

type updateBookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=booked attended cancelled missed"`
}

type sessionResponse struct {
	ID            string    `json:"id"`
	ProgramID     string    `json:"program_id"`
	Capacity      int       `json:"capacity"`
	BookedCount   int       `json:"booked_count"`
	Available     int       `json:"available"`
	ScheduledDate string    `json:"scheduled_date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	IsActive      bool      `json:"is_active"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type bookingResponse struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	SubjectID string        `json:"subject_id"`
	Status    BookingStatus `json:"status"`
	BookedAt  time.Time     `json:"booked_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// getSessionHandler godoc
// @Summary Obtener una sesión
// @Description Devuelve la sesión con su capacidad, reservas contadas y cupos disponibles.
// @Tags sessions
// @Produce json
// @Param sessionID path string true "ID de la sesión"
// @Success 200 {object} sessionResponse
// @Failure 404 {string} string "session not found"
// @Router /sessions/{sessionID} [get]
func getSessionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(s))
	}
}

// listBookingsHandler godoc
// @Summary Listar reservas de una sesión
// @Tags sessions
// @Produce json
// @Param sessionID path string true "ID de la sesión"
// @Success 200 {array} bookingResponse
// @Failure 404 {string} string "session not found"
// @Router /sessions/{sessionID}/bookings [get]
func listBookingsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListBookings(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]bookingResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toBookingResponse(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createBookingHandler godoc
// @Summary Reservar un cupo
// @Description Crea una reserva `booked` para el sujeto. Falla con 409 si la sesión está llena o el sujeto ya tiene una reserva activa, y con 400 si la sesión está inactiva. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param sessionID path string true "ID de la sesión"
// @Param payload body createBookingRequest true "Sujeto (usuario o paciente)"
// @Success 201 {object} bookingResponse
// @Failure 400 {string} string "invalid json / session is not active"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "session not found"
// @Failure 409 {string} string "session is full / duplicate booking"
// @Router /sessions/{sessionID}/bookings [post]
func createBookingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "subject_id required", http.StatusBadRequest)
			return
		}

		b, err := svc.CreateBooking(r.Context(), chi.URLParam(r, "sessionID"), req.SubjectID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

// reconcileHandler godoc
// @Summary Recalcular el contador de una sesión
// @Description Recalcula booked_count desde las reservas booked/attended. Se audita solo si hubo diferencia.
// @Tags sessions
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param sessionID path string true "ID de la sesión"
// @Success 200 {object} sessionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "session not found"
// @Router /sessions/{sessionID}/reconcile [post]
func reconcileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s, err := svc.Reconcile(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(s))
	}
}

// getBookingHandler godoc
// @Summary Obtener una reserva
// @Tags bookings
// @Produce json
// @Param bookingID path string true "ID de la reserva"
// @Success 200 {object} bookingResponse
// @Failure 404 {string} string "booking not found"
// @Router /bookings/{bookingID} [get]
func getBookingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.GetBooking(r.Context(), chi.URLParam(r, "bookingID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// updateBookingStatusHandler godoc
// @Summary Cambiar el estado de una reserva
// @Description Solo se permite booked -> attended | missed | cancelled. missed y cancelled liberan el cupo.
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param bookingID path string true "ID de la reserva"
// @Param payload body updateBookingStatusRequest true "Nuevo estado"
// @Success 200 {object} bookingResponse
// @Failure 400 {string} string "invalid json / invalid status"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "booking not found"
// @Failure 409 {string} string "illegal booking status transition"
// @Router /bookings/{bookingID} [patch]
func updateBookingStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "status must be one of booked, attended, cancelled, missed", http.StatusBadRequest)
			return
		}

		b, err := svc.UpdateBookingStatus(r.Context(), chi.URLParam(r, "bookingID"), req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// cancelBookingHandler godoc
// @Summary Cancelar una reserva
// @Tags bookings
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param bookingID path string true "ID de la reserva"
// @Success 200 {object} bookingResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "booking not found"
// @Failure 409 {string} string "booking already cancelled"
// @Router /bookings/{bookingID}/cancel [post]
func cancelBookingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		b, err := svc.CancelBooking(r.Context(), chi.URLParam(r, "bookingID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// removeBookingHandler godoc
// @Summary Eliminar una reserva
// @Description Borrado administrativo. Si la reserva ocupaba cupo, se libera.
// @Tags bookings
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param bookingID path string true "ID de la reserva"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "booking not found"
// @Router /bookings/{bookingID} [delete]
func removeBookingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.RemoveBooking(r.Context(), chi.URLParam(r, "bookingID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func authenticated(r *http.Request) bool {
	claims, ok := middleware.GetClaims(r.Context())
	return ok && claims.Valid()
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		ProgramID:     s.ProgramID,
		Capacity:      s.Capacity,
		BookedCount:   s.BookedCount,
		Available:     s.Available(),
		ScheduledDate: s.ScheduledDate.Format(time.DateOnly),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		IsActive:      s.IsActive,
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toBookingResponse(b Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		SessionID: b.SessionID,
		SubjectID: b.SubjectID,
		Status:    b.Status,
		BookedAt:  b.BookedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errs.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, errs.ErrBadRequest), errors.Is(err, errs.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "session busy, request timed out", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
