package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/bookingflow/internal/booking/application"
	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/go-chi/chi/v5"
)

// Handler is the thin HTTP trigger for the saga. It never publishes
// directly: CreateBooking commits the mutation and the outbox entry, then
// the relay takes over.
type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

type createBookingReq struct {
	Customer    string `json:"customer"`
	AmountCents int64  `json:"amount_cents"`
}

type bookingResp struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/bookings", h.createBooking)
	r.Get("/bookings/{id}", h.getBooking)
	return r
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b, err := h.service.CreateBooking(r.Context(), req.Customer, req.AmountCents)
	if err != nil {
		h.log.Error("create booking failed", "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, bookingResp{BookingID: b.ID, Status: string(b.Status)})
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.service.GetBooking(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		h.log.Error("get booking failed", "booking_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, bookingResp{BookingID: b.ID, Status: string(b.Status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
