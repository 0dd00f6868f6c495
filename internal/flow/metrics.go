package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_login_attempts_total",
		Help: "Login attempts started, by provider.",
	}, []string{"provider"})

	loginResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_login_results_total",
		Help: "Terminal login outcomes, by provider and result.",
	}, []string{"provider", "result"})
)

const (
	resultLabelCompleted = "completed"
	resultLabelCancelled = "cancelled"
	resultLabelFailed    = "failed"
	resultLabelRedirect  = "redirect"
)
