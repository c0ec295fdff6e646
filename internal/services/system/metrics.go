package system

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// RuntimeStats exposes the hub counters the metrics collector polls.
type RuntimeStats interface {
	ClientCount() int
	RoomCount() int
	UserCount() int
}

// MetricsService collects application metrics and exposes them for scraping.
//
// Room and vote counters are derived from the broadcast stream rather than
// instrumented inside the services: every state mutation publishes exactly
// one event, so observing the stream counts each mutation once per node.
type MetricsService struct {
	logger *utils.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	wsClientsActive prometheus.Gauge
	wsRoomsActive   prometheus.Gauge
	wsUsersActive   prometheus.Gauge

	// Presence metrics
	onlineUsers prometheus.Gauge

	// Broadcast metrics
	broadcastsTotal *prometheus.CounterVec

	// Vote metrics
	voteSessionsOpened *prometheus.CounterVec
	voteSessionsClosed *prometheus.CounterVec

	// Playback metrics
	playbackStartsTotal prometheus.Counter

	// Account metrics
	userRegistrations prometheus.Counter
	userLogins        prometheus.Counter
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	m := &MetricsService{
		logger: logger.Named("metrics_service"),
	}

	m.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waveroom_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.wsClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveroom_ws_clients_active",
			Help: "Number of WebSocket connections on this node",
		},
	)
	m.wsRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveroom_ws_rooms_active",
			Help: "Number of rooms with at least one connection on this node",
		},
	)
	m.wsUsersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveroom_ws_users_active",
			Help: "Number of distinct users connected to this node",
		},
	)

	m.onlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waveroom_online_users",
			Help: "Number of users with live presence across all nodes",
		},
	)

	m.broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveroom_broadcasts_total",
			Help: "Total number of room events relayed to clients",
		},
		[]string{"event"},
	)

	m.voteSessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveroom_vote_sessions_opened_total",
			Help: "Total number of vote sessions opened",
		},
		[]string{"type"},
	)
	m.voteSessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waveroom_vote_sessions_closed_total",
			Help: "Total number of vote sessions closed",
		},
		[]string{"type", "outcome"},
	)

	m.playbackStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waveroom_playback_starts_total",
			Help: "Total number of tracks started",
		},
	)

	m.userRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waveroom_user_registrations_total",
			Help: "Total number of user registrations",
		},
	)
	m.userLogins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waveroom_user_logins_total",
			Help: "Total number of user logins",
		},
	)

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// Start begins polling the hub and presence gauges.
func (m *MetricsService) Start(ctx context.Context, stats RuntimeStats, presence *managers.PresenceManager) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.wsClientsActive.Set(float64(stats.ClientCount()))
				m.wsRoomsActive.Set(float64(stats.RoomCount()))
				m.wsUsersActive.Set(float64(stats.UserCount()))

				count, err := presence.GetOnlineUsersCount(ctx)
				if err != nil {
					m.logger.Error("Failed to count online users", err)
					continue
				}
				m.onlineUsers.Set(float64(count))
			}
		}
	}()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveRoomEvent records metrics derived from a relayed room event.
func (m *MetricsService) ObserveRoomEvent(eventType string, data json.RawMessage) {
	m.broadcastsTotal.WithLabelValues(eventType).Inc()

	switch eventType {
	case models.EventPlaybackStart:
		m.playbackStartsTotal.Inc()
	case models.EventElectionStarted, models.EventMutinyStarted:
		var opened struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &opened); err != nil {
			return
		}
		m.voteSessionsOpened.WithLabelValues(opened.Type).Inc()
	case models.EventVoteComplete:
		var complete models.VoteComplete
		if err := json.Unmarshal(data, &complete); err != nil {
			return
		}
		m.voteSessionsClosed.WithLabelValues(complete.Type, complete.Outcome).Inc()
	}
}

// IncUserRegistrations increments the user registrations counter.
func (m *MetricsService) IncUserRegistrations() {
	m.userRegistrations.Inc()
}

// IncUserLogins increments the user logins counter.
func (m *MetricsService) IncUserLogins() {
	m.userLogins.Inc()
}
