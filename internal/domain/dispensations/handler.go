package dispensations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinic-care/internal/domain/errs"
	"clinic-care/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/patients/{patientID}/medications/{medicationID}", func(mr chi.Router) {
		mr.Get("/eligibility", checkEligibilityHandler(svc))
		mr.Post("/dispensations", dispenseHandler(svc))
		mr.Get("/dispensations", listDispensationsHandler(svc))
	})
}

type dispenseRequest struct {
	Date     string `json:"date" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type eligibilityResponse struct {
	Eligible    bool       `json:"eligible"`
	Reason      string     `json:"reason,omitempty"`
	NextDueDate *time.Time `json:"next_due_date,omitempty"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
}

type dispensationResponse struct {
	ID            string    `json:"id"`
	MedicationID  string    `json:"medication_id"`
	PatientID     string    `json:"patient_id"`
	DispensedDate time.Time `json:"dispensed_date"`
	Quantity      int       `json:"quantity"`
	NextDueDate   time.Time `json:"next_due_date"`
	WindowKey     string    `json:"window_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// checkEligibilityHandler godoc
// @Summary Consultar elegibilidad de dispensación
// @Description Calcula la ventana (día, semana ISO o mes según la frecuencia) que contiene `date` y verifica si ya hubo una dispensación en ella. Es una lectura consultiva; Dispense vuelve a verificar.
// @Tags dispensations
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param medicationID path string true "ID de la medicación"
// @Param date query string false "YYYY-MM-DD o RFC3339 (default: ahora)"
// @Success 200 {object} eligibilityResponse
// @Failure 400 {string} string "invalid date"
// @Failure 404 {string} string "patient / medication not found"
// @Router /patients/{patientID}/medications/{medicationID}/eligibility [get]
func checkEligibilityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := time.Now()
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			t, err := ParseDate(raw, svc.Location())
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			date = t
		}

		el, err := svc.CheckEligibility(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "medicationID"), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEligibilityResponse(el))
	}
}

// dispenseHandler godoc
// @Summary Registrar una dispensación
// @Description Re-verifica la elegibilidad de forma atómica por (paciente, medicación). Si la ventana ya está usada responde 409 con el mismo payload de elegibilidad. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags dispensations
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body dispenseRequest true "Fecha (YYYY-MM-DD o RFC3339) y cantidad"
// @Success 201 {object} dispensationResponse
// @Failure 400 {string} string "invalid json / invalid date / quantity must be greater than zero"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "patient / medication not found"
// @Failure 409 {object} eligibilityResponse
// @Router /patients/{patientID}/medications/{medicationID}/dispensations [post]
func dispenseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.Valid() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req dispenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "date required and quantity must be greater than zero", http.StatusBadRequest)
			return
		}

		date, err := ParseDate(req.Date, svc.Location())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		d, err := svc.Dispense(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "medicationID"), date, req.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDispensationResponse(d))
	}
}

// listDispensationsHandler godoc
// @Summary Historial de dispensaciones
// @Tags dispensations
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param medicationID path string true "ID de la medicación"
// @Param limit query int false "Máximo de filas (default 50, máx 200)"
// @Success 200 {array} dispensationResponse
// @Failure 404 {string} string "patient / medication not found"
// @Router /patients/{patientID}/medications/{medicationID}/dispensations [get]
func listDispensationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		items, err := svc.ListDispensations(r.Context(), chi.URLParam(r, "patientID"), chi.URLParam(r, "medicationID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]dispensationResponse, 0, len(items))
		for _, d := range items {
			out = append(out, toDispensationResponse(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toEligibilityResponse(el Eligibility) eligibilityResponse {
	return eligibilityResponse{
		Eligible:    el.Eligible,
		Reason:      el.Reason,
		NextDueDate: el.NextDueDate,
		WindowStart: el.Window.Start,
		WindowEnd:   el.Window.End,
	}
}

func toDispensationResponse(d Dispensation) dispensationResponse {
	return dispensationResponse{
		ID:            d.ID,
		MedicationID:  d.MedicationID,
		PatientID:     d.PatientID,
		DispensedDate: d.DispensedDate,
		Quantity:      d.Quantity,
		NextDueDate:   d.NextDueDate,
		WindowKey:     d.WindowKey,
		CreatedAt:     d.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	var inel *IneligibleError
	switch {
	case errors.As(err, &inel):
		writeJSON(w, http.StatusConflict, toEligibilityResponse(inel.Eligibility))
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errs.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "dispensation busy, request timed out", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
