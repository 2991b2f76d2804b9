package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the prometheus instruments the core services report
// into. Services receive it through a functional option and tolerate nil.
type Metrics struct {
	UsersCreated       prometheus.Counter
	AuthFailures       prometheus.Counter
	DemotionsApplied   prometheus.Counter
	InteractionsLogged prometheus.Counter
	ResponsesSaved     prometheus.Counter
	SurveysCreated     prometheus.Counter

	RequestDuration *prometheus.HistogramVec
}

// New registers the kindmesh instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_users_created_total",
			Help: "Number of user accounts created",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_auth_failures_total",
			Help: "Number of failed authentication attempts",
		}),
		DemotionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_admin_demotions_total",
			Help: "Number of admin demotions applied after quorum",
		}),
		InteractionsLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_interactions_logged_total",
			Help: "Number of interactions appended to the ledger",
		}),
		ResponsesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_survey_responses_saved_total",
			Help: "Number of survey response upserts",
		}),
		SurveysCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kindmesh_surveys_created_total",
			Help: "Number of surveys created",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kindmesh_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
