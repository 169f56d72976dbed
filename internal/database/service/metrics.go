package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	warTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "war",
		Name:      "transitions_total",
		Help:      "War poll cycle transitions by kind.",
	}, []string{"kind"})

	joinSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "join",
		Name:      "submissions_total",
		Help:      "Join request submissions by outcome.",
	}, []string{"outcome"})

	joinDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "join",
		Name:      "decisions_total",
		Help:      "Join request decisions by outcome.",
	}, []string{"outcome"})

	roleGrantFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "join",
		Name:      "role_grant_failures_total",
		Help:      "Approvals rolled back because the member role could not be granted.",
	})
)
