package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	scanOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_outcomes_total",
			Help: "Scan outcomes per venue and payload kind",
		},
		[]string{"venue_id", "kind", "outcome"},
	)

	suppressedScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suppressed_scans_total",
			Help: "Scans suppressed by the duplicate-scan guard",
		},
		[]string{"venue_id", "reason"},
	)

	verifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verify_duration_seconds",
			Help:    "Duration of verification attempts",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"kind"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_scan_sessions_total",
			Help: "Currently registered scanning sessions",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectSessionMetrics(ctx)
	}
}

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "scan:session:*").Result()
	if err != nil {
		return
	}
	activeSessions.Set(float64(len(keys)))
}

// TrackScan counts one handled scan outcome.
func (m *Monitor) TrackScan(venueID, kind, outcome string) {
	scanOutcomes.WithLabelValues(venueID, kind, outcome).Inc()
}

// TrackSuppressed counts one guard suppression.
func (m *Monitor) TrackSuppressed(venueID, reason string) {
	suppressedScans.WithLabelValues(venueID, reason).Inc()
}

// TrackVerifyDuration records how long a verification attempt took.
func (m *Monitor) TrackVerifyDuration(kind string, duration time.Duration) {
	verifyDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
