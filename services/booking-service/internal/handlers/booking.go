package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicslots/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicslots/libs/otel"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/scheduling"
)

type BookingHandler struct {
	resolver *scheduling.Resolver
	booker   *booking.Booker
	logger   *slog.Logger
}

func NewBookingHandler(resolver *scheduling.Resolver, booker *booking.Booker, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{resolver: resolver, booker: booker, logger: logger}
}

// Register mounts the API on mux. bookGuard wraps the booking route only.
func (h *BookingHandler) Register(mux *http.ServeMux, bookGuard httpx.Middleware) {
	book := http.Handler(http.HandlerFunc(h.Book))
	if bookGuard != nil {
		book = bookGuard(book)
	}
	mux.HandleFunc("GET /api/v1/slots", h.Slots)
	mux.Handle("POST /api/v1/appointments", book)
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", h.UpdateStatus)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/cancel", h.Cancel)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	ProviderID      string     `json:"provider_id"`
	Date            string     `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	Slots           []slotItem `json:"slots"`
	Count           int        `json:"count"`
}

type bookRequest struct {
	ProviderID string `json:"provider_id"`
	UserID     string `json:"user_id"`
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Notes      string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type appointmentItem struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	UserID     string `json:"user_id"`
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type listResponse struct {
	Appointments []appointmentItem `json:"appointments"`
	Count        int               `json:"count"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	date := strings.TrimSpace(q.Get("date"))
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration_minutes")))
	if err != nil {
		h.writeError(w, r, model.Validationf("duration_minutes must be an integer"))
		return
	}

	slots, err := h.resolver.ListAvailableSlots(r.Context(), providerID, date, duration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		ProviderID:      providerID,
		Date:            date,
		DurationMinutes: duration,
		Slots:           items,
		Count:           len(items),
	})
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, model.Validationf("invalid json body"))
		return
	}

	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseTime("end_time", req.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.booker.BookSlot(r.Context(), booking.BookRequest{
		ProviderID: req.ProviderID,
		UserID:     req.UserID,
		ServiceID:  req.ServiceID,
		StartTime:  start,
		EndTime:    end,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/appointments/"+appt.ID)
	writeJSON(w, http.StatusCreated, toItem(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AppointmentFilter{
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		UserID:     strings.TrimSpace(q.Get("user_id")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		h.writeError(w, r, model.Validationf("limit must be an integer"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		h.writeError(w, r, model.Validationf("offset must be an integer"))
		return
	}
	filter = filter.Normalize()

	appts, err := h.booker.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	writeJSON(w, http.StatusOK, listResponse{Appointments: items, Count: len(items), Limit: filter.Limit, Offset: filter.Offset})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.booker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, model.Validationf("invalid json body"))
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.booker.TransitionStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.booker.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"err", err,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"trace_id", otelx.TraceID(r.Context()),
		)
		msg = "internal error"
	}
	writeJSON(w, code, errorResponse{Error: msg, RequestID: httpx.RequestIDFromContext(r.Context())})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, model.Validationf("%s is required", field)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, model.Validationf("%s must be RFC3339", field)
	}
	return t, nil
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func toItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		ID:         appt.ID,
		ProviderID: appt.ProviderID,
		UserID:     appt.UserID,
		ServiceID:  appt.ServiceID,
		StartTime:  appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:    appt.EndTime.UTC().Format(time.RFC3339),
		Status:     string(appt.Status),
		Notes:      appt.Notes,
		CreatedAt:  appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
