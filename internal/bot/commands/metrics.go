package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildkeeper",
	Subsystem: "commands",
	Name:      "handled_total",
	Help:      "Commands handled, by command and outcome.",
}, []string{"command", "outcome"})
