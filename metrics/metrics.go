// Package metrics defines the observations a bot reports.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	prometheus.Collector
}

type Metrics struct {
	// FrameCount counts stream frames by cmd.
	FrameCount Observer
	// CommandCount counts command invocations by command name and outcome.
	CommandCount Observer
	// HandlerLatency observes command handler run time in seconds by
	// command name.
	HandlerLatency Observer
	// PostCount counts posts created by the bot.
	PostCount Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FrameCount,
		m.CommandCount,
		m.HandlerLatency,
		m.PostCount,
	}
}

// New creates the standard set of metrics.
func New() *Metrics {
	return &Metrics{
		FrameCount: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "roarbot",
					Subsystem: "stream",
					Name:      "frames",
					Help:      "Number of frames received from the stream by cmd.",
				},
				[]string{"cmd"},
			),
		),
		CommandCount: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "roarbot",
					Subsystem: "commands",
					Name:      "invocations",
					Help:      "Number of command invocations by command and outcome.",
				},
				[]string{"command", "outcome"},
			),
		),
		HandlerLatency: NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 5, 10},
					Namespace: "roarbot",
					Subsystem: "commands",
					Name:      "handler_latency",
					Help:      "How long command handlers take to run in seconds.",
				},
				[]string{"command"},
			),
		),
		PostCount: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "roarbot",
					Subsystem: "api",
					Name:      "posts",
					Help:      "Number of posts created.",
				},
			),
		),
	}
}
