// internal/httpserver/metrics.go
//
// Prometheus instrumentation, exported on /metrics.

package httpserver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/worldepixel/worlde-server/internal/session"
)

var (
	roundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worlde_rounds_started_total",
		Help: "Rounds started across all players.",
	})

	// result is the transition kind: invalid, hit, win, miss, loss.
	guesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worlde_guesses_total",
		Help: "Letter guesses by outcome.",
	}, []string{"result"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worlde_ws_connections",
		Help: "Open WebSocket connections.",
	})
)

// registerSessionGauge exposes the live controller count. Repeated Server
// construction in tests re-registers; the duplicate is ignored.
func registerSessionGauge(reg *session.Registry) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "worlde_active_sessions",
		Help: "Live session controllers held in memory.",
	}, func() float64 { return float64(reg.Len()) })
	if err := prometheus.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			log.Warn().Err(err).Msg("register sessions gauge")
		}
	}
}
