package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_questions_total",
			Help: "Total number of questions run through the pipeline.",
		},
	)
	planningFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_planning_failures_total",
			Help: "Total number of questions whose completion could not be parsed into SQL.",
		},
	)
	rejectedStatementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_rejected_statements_total",
			Help: "Total number of non-SELECT statements refused by the store.",
		},
	)
	queryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabletalk_query_failures_total",
			Help: "Total number of SELECT statements the backing engine failed to execute.",
		},
	)
	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_completion_requests_total",
			Help: "Total number of completion service calls by outcome.",
		},
		[]string{"outcome"},
	)
	answerLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_answer_latency_seconds",
			Help:    "End-to-end latency of answered questions in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	queryLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_query_latency_seconds",
			Help:    "Latency of store query execution in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		planningFailuresTotal,
		rejectedStatementsTotal,
		queryFailuresTotal,
		completionRequestsTotal,
		answerLatencySeconds,
		queryLatencySeconds,
	)
}

func IncrementQuestions() {
	questionsTotal.Inc()
}

func IncrementPlanningFailures() {
	planningFailuresTotal.Inc()
}

func IncrementRejectedStatements() {
	rejectedStatementsTotal.Inc()
}

func IncrementQueryFailures() {
	queryFailuresTotal.Inc()
}

func ObserveCompletion(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveAnswerLatency(elapsed time.Duration) {
	answerLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveQueryLatency(elapsed time.Duration) {
	queryLatencySeconds.Observe(elapsed.Seconds())
}
