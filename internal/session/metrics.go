package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Login and signup attempts by role and outcome.",
	}, []string{"role", "outcome"})

	bootstrapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_bootstraps_total",
		Help: "Session bootstraps by outcome.",
	}, []string{"outcome"})

	logoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_logouts_total",
		Help: "Explicit logouts.",
	})
)

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeSignedOut  = "signed_out"
	outcomeSuperseded = "superseded"
)
