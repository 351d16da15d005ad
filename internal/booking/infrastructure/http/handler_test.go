package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmehra2102/bookingflow/internal/booking/application"
	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	bookings map[string]domain.Booking
}

func (r *stubRepo) CreateWithOutbox(_ context.Context, b domain.Booking, _ outbox.Entry) error {
	r.bookings[b.ID] = b
	return nil
}

func (r *stubRepo) Get(_ context.Context, id string) (domain.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (r *stubRepo) TransitionWithOutbox(_ context.Context, id string, to domain.Status, _ outbox.Entry) (bool, error) {
	b, ok := r.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if err := b.TransitionTo(to); err != nil {
		return false, nil
	}
	r.bookings[id] = b
	return true, nil
}

func newTestHandler() (http.Handler, *stubRepo) {
	log := slog.New(slog.DiscardHandler)
	repo := &stubRepo{bookings: map[string]domain.Booking{}}
	return NewHandler(log, application.NewService(log, repo)).Routes(), repo
}

func TestCreateBooking(t *testing.T) {
	h, repo := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"customer":"alice","amount_cents":4200}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booking_id"`)
	assert.Contains(t, rec.Body.String(), `"PENDING"`)
	assert.Len(t, repo.bookings, 1)
}

func TestCreateBookingInvalidBody(t *testing.T) {
	h, _ := newTestHandler()

	for _, body := range []string{`not json`, `{"customer":"","amount_cents":100}`, `{"customer":"alice","amount_cents":0}`} {
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestGetBooking(t *testing.T) {
	h, repo := newTestHandler()
	b, err := domain.NewBooking("alice", 4200)
	require.NoError(t, err)
	repo.bookings[b.ID] = b

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+b.ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), b.ID)
}

func TestGetBookingNotFound(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/bookings/missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
