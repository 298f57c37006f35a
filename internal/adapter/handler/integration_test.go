package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/train-booking/internal/adapter/storage"
	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/core/service"
	"github.com/rl1809/train-booking/internal/metrics"
)

type memoryCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *memoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *memoryCache) ReleaseIdempotency(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

type testEnv struct {
	store    *storage.SQLiteAdapter
	router   http.Handler
	registry *prometheus.Registry
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "booking.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	engine := service.NewReservationService(store, service.WithMetrics(rec))
	bookings := service.NewBookingService(engine, store,
		service.WithIdempotency(&memoryCache{keys: make(map[string]bool)}))
	availability := service.NewAvailabilityService(store)

	authz, err := NewAuthorizer(ctx)
	require.NoError(t, err)
	h := NewHTTPHandler(bookings, availability, NewAuthenticator(testSecret, testAdminKey), authz)

	return &testEnv{
		store:    store,
		router:   h.Routes(zerolog.Nop(), rec, nil),
		registry: reg,
	}
}

func (e *testEnv) createTrain(t *testing.T, capacity int) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"train_name":"Deccan Queen","source":"Mumbai","destination":"Pune","seat_capacity":%d,
		"arrival_time_at_source":"2026-03-01T08:00:00Z","arrival_time_at_destination":"2026-03-01T11:00:00Z"}`, capacity)
	rec := doRequest(t, e.router, http.MethodPost, "/api/trains/create",
		requestOpts{token: signToken(t, testSecret, 1), adminKey: testAdminKey, body: body})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CreateTrainHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.TrainID
}

func TestIntegration_BookingFlow(t *testing.T) {
	env := setupTestEnv(t)
	trainID := env.createTrain(t, 5)
	token := signToken(t, testSecret, 7)

	rec := doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/trains/%d/book", trainID),
		requestOpts{token: token, body: `{"user_id":7,"no_of_seats":3}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first BookHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, []int{1, 2, 3}, first.SeatNumbers)

	rec = doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/trains/%d/book", trainID),
		requestOpts{token: token, body: `{"user_id":7,"no_of_seats":2}`})
	require.Equal(t, http.StatusOK, rec.Code)
	var second BookHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, []int{4, 5}, second.SeatNumbers)

	rec = doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/trains/%d/book", trainID),
		requestOpts{token: token, body: `{"user_id":7,"no_of_seats":1}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), codeInsufficientCapacity)

	rec = doRequest(t, env.router, http.MethodGet, "/api/trains/availability?source=Mumbai&destination=Pune", requestOpts{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`[{"train_id":%d,"train_name":"Deccan Queen","available_seats":0}]`, trainID), rec.Body.String())

	rec = doRequest(t, env.router, http.MethodGet, "/api/bookings/"+second.BookingID, requestOpts{token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var detail BookingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, second.BookingID, detail.BookingID)
	assert.Equal(t, trainID, detail.TrainID)
	assert.Equal(t, int64(7), detail.UserID)
	assert.Equal(t, 2, detail.NoOfSeats)
	assert.Equal(t, []int{4, 5}, detail.SeatNumbers)
	assert.True(t, detail.ArrivalTimeAtSource.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)))

	expected := `
# HELP train_booking_reservations_total Reservation attempts by outcome.
# TYPE train_booking_reservations_total counter
train_booking_reservations_total{outcome="insufficient_capacity"} 1
train_booking_reservations_total{outcome="success"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(env.registry, strings.NewReader(expected), "train_booking_reservations_total"))

	count, err := testutil.GatherAndCount(env.registry, "train_booking_http_requests_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestIntegration_ConcurrentBookingsNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	const capacity = 10
	trainID := env.createTrain(t, capacity)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		token := signToken(t, testSecret, int64(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/trains/%d/book", trainID),
				requestOpts{token: token, body: `{"no_of_seats":1}`})
			if rec.Code == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, successCount.Load(), int32(capacity))

	reserved, err := env.store.SumReservedSeats(context.Background(), trainID)
	require.NoError(t, err)
	assert.Equal(t, int(successCount.Load()), reserved)

	seats, err := env.store.ListAssignedSeats(context.Background(), trainID)
	require.NoError(t, err)
	unique := make(map[int]bool, len(seats))
	for _, s := range seats {
		unique[s] = true
	}
	assert.Len(t, unique, reserved)
}

func TestIntegration_IdempotencyPreventsDoubleBooking(t *testing.T) {
	env := setupTestEnv(t)
	trainID := env.createTrain(t, 10)
	token := signToken(t, testSecret, 7)
	body := fmt.Sprintf(`{"no_of_seats":2,"request_id":%q}`, uuid.NewString())

	var statuses [5]int
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/trains/%d/book", trainID),
				requestOpts{token: token, body: body})
			statuses[i] = rec.Code
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, code := range statuses {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, conflicts)

	avail, err := env.store.GetAvailability(context.Background(), trainID)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{TrainID: trainID, TrainName: "Deccan Queen", AvailableSeats: 8}, avail)
}
