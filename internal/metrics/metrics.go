package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "train_booking"

// Reservation outcomes used as the "outcome" label.
const (
	OutcomeSuccess              = "success"
	OutcomeTrainNotFound        = "train_not_found"
	OutcomeInvalidSeatCount     = "invalid_seat_count"
	OutcomeInsufficientCapacity = "insufficient_capacity"
	OutcomeStoreUnavailable     = "store_unavailable"
)

// Recorder holds the service's collectors. A nil *Recorder records nothing.
type Recorder struct {
	reservations    *prometheus.CounterVec
	reservedSeats   prometheus.Counter
	reserveDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome.",
		}, []string{"outcome"}),
		reservedSeats: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserved_seats_total",
			Help:      "Seats committed by successful reservations.",
		}),
		reserveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reserve_duration_seconds",
			Help:      "Time spent in the reservation transaction, lock wait included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
	}
}

func (r *Recorder) ObserveReservation(outcome string, seats int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.reservations.WithLabelValues(outcome).Inc()
	r.reserveDuration.Observe(elapsed.Seconds())
	if outcome == OutcomeSuccess {
		r.reservedSeats.Add(float64(seats))
	}
}

func (r *Recorder) ObserveHTTPRequest(method, route string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
