package bot

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the bot collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parsebot_commands_total",
			Help: "Chat commands handled by command and result",
		}, []string{"command", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parsebot_command_duration_seconds",
			Help:    "Chat command latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"command"}),
	}
}

func (m *Metrics) observe(cmd Command, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmd.String(), result).Inc()
	m.duration.WithLabelValues(cmd.String()).Observe(d.Seconds())
}
