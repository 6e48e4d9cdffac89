package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc))
		mr.Get("/", listMedicationsHandler(svc))
		mr.Get("/search", searchMedicationsHandler(svc))

		mr.Get("/{medicationID}", getMedicationHandler(svc))
		mr.Patch("/{medicationID}", updateMedicationHandler(svc))
		mr.Delete("/{medicationID}", deleteMedicationHandler(svc))

		// Transiciones de la máquina de dosis.
		mr.Post("/{medicationID}/taken", registerTakenHandler(svc))
		mr.Post("/{medicationID}/cancel-pending", cancelPendingHandler(svc))
		mr.Post("/{medicationID}/advance", forceAdvanceHandler(svc))
	})
}

type createMedicationRequest struct {
	Name          string `json:"name"`
	HourFirstDose string `json:"hour_first_dose"` // HH:MM
	PeriodStart   string `json:"period_start"`    // YYYY-MM-DD opcional
	PeriodEnd     string `json:"period_end"`
	IntervalHours int    `json:"interval_in_hours"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name          *string `json:"name"`
	HourNextDose  *string `json:"hour_next_dose"`
	PeriodStart   *string `json:"period_start"`
	PeriodEnd     *string `json:"period_end"`
	IntervalHours *int    `json:"interval_in_hours"`
}

type doseIntervalResponse struct {
	ID    int `json:"id"`
	Hours int `json:"interval_in_hours"`
}

type medicationResponse struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	HourFirstDose       string               `json:"hour_first_dose"`
	HourNextDose        string               `json:"hour_next_dose"`
	PeriodStart         *time.Time           `json:"period_start,omitempty"`
	PeriodEnd           *time.Time           `json:"period_end,omitempty"`
	Status              bool                 `json:"status"`
	PendingConfirmation bool                 `json:"pending_confirmation"`
	PendingUntil        *time.Time           `json:"pending_until,omitempty"`
	LastTakenTime       *string              `json:"last_taken_time,omitempty"`
	State               string               `json:"state"`
	DoseInterval        doseIntervalResponse `json:"dose_interval"`
	NextDoseAt          *time.Time           `json:"next_dose_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

type registerTakenResponse struct {
	Message    string             `json:"message"`
	Medication medicationResponse `json:"medication"`
}

type messageResponse struct {
	Message    string             `json:"message"`
	Medication medicationResponse `json:"medication"`
}

type paginationResponse struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalRecords int  `json:"totalRecords"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

type medicationListResponse struct {
	Medications []medicationResponse `json:"medications"`
	Pagination  paginationResponse   `json:"pagination"`
}

func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:          req.Name,
			HourFirstDose: req.HourFirstDose,
			PeriodStart:   req.PeriodStart,
			PeriodEnd:     req.PeriodEnd,
			IntervalHours: req.IntervalHours,
		})
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m, nil))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		page := pageFromQuery(r)
		items, total, err := svc.List(r.Context(), claims.UserID, page)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, page, total))
	}
}

func searchMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		page := pageFromQuery(r)
		items, total, err := svc.Search(r.Context(), claims.UserID, r.URL.Query().Get("q"), page)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if total == 0 {
			http.Error(w, "no medications found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, page, total))
	}
}

func getMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m, nil))
	}
}

func updateMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updateMedicationRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"), UpdateInput{
			Name:          req.Name,
			HourNextDose:  req.HourNextDose,
			PeriodStart:   req.PeriodStart,
			PeriodEnd:     req.PeriodEnd,
			IntervalHours: req.IntervalHours,
		})
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m, nil))
	}
}

func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.Delete(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"message": "medication " + m.Name + " deleted",
		})
	}
}

func registerTakenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.RegisterTaken(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, registerTakenResponse{
			Message:    res.Message,
			Medication: toMedicationResponse(res.Medication, nil),
		})
	}
}

func cancelPendingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.CancelPending(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{
			Message:    "pending confirmation cancelled",
			Medication: toMedicationResponse(m, nil),
		})
	}
}

func forceAdvanceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.ForceAdvance(r.Context(), claims.UserID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeMedicationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{
			Message:    "dose advanced to " + m.HourNextDose,
			Medication: toMedicationResponse(m, nil),
		})
	}
}

// writeMedicationError mapea errores de dominio a status codes.
// Las fallas de validación de la máquina de dosis van como 409 con detalle:
// no son errores del sistema, el usuario debe reintentar más tarde.
func writeMedicationError(w http.ResponseWriter, err error) {
	var outside *OutsideWindowError
	var missed *AlreadyMissedError
	var tooSoon *IntervalTooSoonError

	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "medication not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrStaleDoseState):
		// Otra transición (el sweep, u otro request) se adelantó.
		http.Error(w, "medication state changed, please retry", http.StatusConflict)
	case errors.As(err, &outside):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        outside.Error(),
			"scheduled_at": outside.ScheduledAt,
			"window_start": outside.WindowStart,
			"window_end":   outside.WindowEnd,
		})
	case errors.As(err, &missed):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":             missed.Error(),
			"scheduled_at":      missed.ScheduledAt,
			"late_by_minutes":   int(missed.LateBy.Minutes()),
			"tolerance_minutes": int(missed.Tolerance.Minutes()),
		})
	case errors.As(err, &tooSoon):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        tooSoon.Error(),
			"last_taken":   tooSoon.LastTakenAt,
			"allowed_at":   tooSoon.AllowedAt,
			"wait_minutes": int(tooSoon.Wait.Round(time.Minute).Minutes()),
		})
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMedicationResponse(m Medication, nextDoseAt *time.Time) medicationResponse {
	return medicationResponse{
		ID:                  m.ID,
		Name:                m.Name,
		HourFirstDose:       m.HourFirstDose,
		HourNextDose:        m.HourNextDose,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		Status:              m.Status,
		PendingConfirmation: m.PendingConfirmation,
		PendingUntil:        m.PendingUntil,
		LastTakenTime:       m.LastTakenTime,
		State:               string(m.State()),
		DoseInterval: doseIntervalResponse{
			ID:    m.Interval.ID,
			Hours: m.Interval.Hours,
		},
		NextDoseAt: nextDoseAt,
		CreatedAt:  m.CreatedAt,
	}
}

func toListResponse(items []ListItem, page Page, total int) medicationListResponse {
	out := make([]medicationResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toMedicationResponse(it.Medication, it.NextDoseAt))
	}

	return medicationListResponse{
		Medications: out,
		Pagination:  newPagination(page, len(items), total),
	}
}

func newPagination(page Page, count, total int) paginationResponse {
	totalPages := 0
	if page.Size > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}

	return paginationResponse{
		CurrentPage:  page.Number,
		TotalPages:   totalPages,
		TotalRecords: total,
		HasNext:      page.Offset()+count < total,
		HasPrev:      page.Number > 1,
	}
}

func pageFromQuery(r *http.Request) Page {
	page := Page{Number: 1, Size: 20}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		page.Size = v
	}
	return page
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// (medications/history/notifications); ver nota en el handler de history.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
