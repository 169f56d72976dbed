package war

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "scheduler",
		Name:      "guild_failures_total",
		Help:      "Guild ticks that failed and were skipped.",
	})

	notifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildkeeper",
		Subsystem: "scheduler",
		Name:      "notify_failures_total",
		Help:      "War poll notifications that could not be delivered.",
	}, []string{"kind"})
)
