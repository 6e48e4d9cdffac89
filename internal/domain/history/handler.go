package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
	"github.com/lucasatdriano/LembraMed-Server/internal/middleware"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes monta la lectura del historial. Valida ownership del
// medicamento contra el servicio de medications antes de listar.
func RegisterRoutes(r chi.Router, svc *Service, medsSvc *medications.Service, clk *clock.Clock) {
	r.Get("/medications/{medicationID}/history", listHistoryHandler(svc, medsSvc, clk))
}

type entryResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	Taken        bool      `json:"taken"`
	Origin       string    `json:"origin"`
	TakenDate    time.Time `json:"taken_date"`
	CreatedAt    time.Time `json:"created_at"`
}

type paginationResponse struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalRecords int  `json:"totalRecords"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

type historyListResponse struct {
	History    []entryResponse    `json:"history"`
	Pagination paginationResponse `json:"pagination"`
}

func listHistoryHandler(svc *Service, medsSvc *medications.Service, clk *clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medicationID := chi.URLParam(r, "medicationID")
		if _, err := medsSvc.Get(r.Context(), claims.UserID, medicationID); err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		q := r.URL.Query()

		filter := ListFilter{
			Status: StatusFilter(q.Get("status")),
			Page:   1,
			Limit:  20,
		}
		switch filter.Status {
		case "", StatusAll, StatusTaken, StatusMissed:
		default:
			http.Error(w, "status must be all, taken or missed", http.StatusBadRequest)
			return
		}

		if v := q.Get("startDate"); v != "" {
			t, err := clk.StartOfDay(v)
			if err != nil {
				http.Error(w, "startDate must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.From = &t
		}
		if v := q.Get("endDate"); v != "" {
			t, err := clk.EndOfDay(v)
			if err != nil {
				http.Error(w, "endDate must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.To = &t
		}

		if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
			filter.Page = v
		}
		if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
			filter.Limit = v
		}

		entries, total, err := svc.ListByMedication(r.Context(), medicationID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, entryResponse{
				ID:           e.ID,
				MedicationID: e.MedicationID,
				Taken:        e.Taken,
				Origin:       string(e.Origin),
				TakenDate:    e.TakenDate,
				CreatedAt:    e.CreatedAt,
			})
		}

		totalPages := (total + filter.Limit - 1) / filter.Limit
		offset := (filter.Page - 1) * filter.Limit

		writeJSON(w, http.StatusOK, historyListResponse{
			History: out,
			Pagination: paginationResponse{
				CurrentPage:  filter.Page,
				TotalPages:   totalPages,
				TotalRecords: total,
				HasNext:      offset+len(out) < total,
				HasPrev:      filter.Page > 1,
			},
		})
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
// Si más adelante se repite en más módulos, recién conviene extraerlo a un
// helper común.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
