package checker

import "github.com/prometheus/client_golang/prometheus"

// Metric label values.
const (
	kindLocal  = "local"
	kindRemote = "remote"

	verdictReachable   = "reachable"
	verdictUnreachable = "unreachable"
	verdictFailed      = "failed"
)

var (
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcheck_checks_total",
			Help: "Total number of checks by kind and verdict.",
		},
		[]string{"kind", "verdict"},
	)

	redirectsFollowed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlcheck_redirects_followed_total",
			Help: "Total number of same-host redirects followed by local checks.",
		},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcheck_dispatch_total",
			Help: "Total number of local dispatches by answering handler and status code.",
		},
		[]string{"handler", "status"},
	)

	checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urlcheck_check_duration_seconds",
			Help:    "Duration of a check including every followed redirect, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(checksTotal)
	prometheus.MustRegister(redirectsFollowed)
	prometheus.MustRegister(dispatchTotal)
	prometheus.MustRegister(checkDuration)

	for _, kind := range []string{kindLocal, kindRemote} {
		checksTotal.WithLabelValues(kind, verdictReachable)
		checksTotal.WithLabelValues(kind, verdictUnreachable)
		checksTotal.WithLabelValues(kind, verdictFailed)
	}
}

func observe(kind string, res Result) {
	verdict := verdictUnreachable
	switch {
	case res.Err != nil:
		verdict = verdictFailed
	case res.Reachable:
		verdict = verdictReachable
	}
	checksTotal.WithLabelValues(kind, verdict).Inc()
	checkDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
}
