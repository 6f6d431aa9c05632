package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	MembersCreated      prometheus.Counter
	ReferralsAttributed prometheus.Counter
	InviteCodeAttempts  prometheus.Histogram

	GroupsCreated     prometheus.Counter
	GroupMembersAdded prometheus.Counter

	BroadcastsSent      prometheus.Counter
	BroadcastRecipients *prometheus.CounterVec
	BroadcastDuration   prometheus.Histogram

	SubmissionsRecorded prometheus.Counter

	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MembersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_members_created_total",
			Help: "Total number of members created in the system",
		}),
		ReferralsAttributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_referrals_attributed_total",
			Help: "Total number of new members attributed to a referrer",
		}),
		InviteCodeAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "canvass_invite_code_generation_attempts",
			Help:    "Attempts needed to mint a unique invite code",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		GroupsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_groups_created_total",
			Help: "Total number of civic groups created",
		}),
		GroupMembersAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_group_members_added_total",
			Help: "Total number of recruits added to groups",
		}),
		BroadcastsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_broadcasts_total",
			Help: "Total number of group broadcasts dispatched",
		}),
		BroadcastRecipients: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canvass_broadcast_recipients_total",
			Help: "Broadcast recipient outcomes",
		}, []string{"outcome"}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "canvass_broadcast_duration_seconds",
			Help:    "Wall-clock time of a full broadcast fan-out",
			Buckets: prometheus.DefBuckets,
		}),
		SubmissionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canvass_submissions_recorded_total",
			Help: "Total number of voter submissions recorded",
		}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canvass_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Latency returns middleware observing request duration per route pattern.
func (m *Metrics) Latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
