package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed redis commands by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gorahrib_redis_errors_total",
		Help: "Total number of failed redis commands",
	}, []string{"operation"})

	// ActiveWebSockets tracks open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gorahrib_active_websockets",
		Help: "Number of open websocket connections",
	})

	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector.
// fiberprometheus registers on the default registry, so it is built once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
	})
	return promInst
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	if p == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return p.Middleware
}
