package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reservations_total",
			Help: "Ticket reservation attempts by outcome",
		},
		[]string{"event_id", "status"},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_redemptions_total",
			Help: "Ticket redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	availableTickets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_available_tickets",
			Help: "Advisory available ticket count per event",
		},
		[]string{"event_id"},
	)

	reservationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservation_duration_seconds",
			Help:    "Duration of purchase reservations including payment confirmation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	verificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verification_duration_seconds",
			Help:    "Duration of ticket verification attempts",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)
)

// Monitor records purchase/verification metrics and mirrors the advisory
// availability cache into a gauge.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// CollectAvailability periodically exports the cached per-event availability.
// It returns when ctx is cancelled.
func (m *Monitor) CollectAvailability(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collectAvailability(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) collectAvailability(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "availability:*").Result()
	if err != nil {
		return
	}

	for _, key := range keys {
		eventID := key[len("availability:"):]
		count, err := m.redis.Get(ctx, key).Int64()
		if err != nil {
			continue
		}
		availableTickets.WithLabelValues(eventID).Set(float64(count))
	}
}

func (m *Monitor) TrackReservation(eventID, status string) {
	reservations.WithLabelValues(eventID, status).Inc()
}

func (m *Monitor) TrackRedemption(outcome string) {
	redemptions.WithLabelValues(outcome).Inc()
}

func (m *Monitor) SetAvailable(eventID string, count int) {
	availableTickets.WithLabelValues(eventID).Set(float64(count))
}

func (m *Monitor) TrackReservationDuration(d time.Duration) {
	reservationDuration.Observe(d.Seconds())
}

func (m *Monitor) TrackVerificationDuration(d time.Duration) {
	verificationDuration.Observe(d.Seconds())
}
