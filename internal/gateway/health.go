package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// healthEndpoints is the ordered list of lightweight probes. The first
// non-error answer marks the engine healthy and short-circuits the rest.
var healthEndpoints = []string{
	"/api/health",
	"/api/server/version",
	"/api/sessions",
}

// healthCache is the time-boxed probe result. A stale entry is never
// discarded for age alone; it is only superseded by a successful probe,
// so transient failures serve the previous answer instead of an error.
type healthCache struct {
	mu       sync.Mutex
	result   *HealthResult
	probedAt time.Time
}

// HealthCheck probes the engine, serving the cached result within the TTL.
// The mutex is held across the probe sequence so a stampede of callers
// costs one probe run, not one per caller.
func (g *Gateway) HealthCheck(ctx context.Context) HealthResult {
	ttl := g.cfg.Tuning.HealthCacheTTL.Duration
	g.health.mu.Lock()
	defer g.health.mu.Unlock()

	now := g.now()
	if g.health.result != nil && now.Sub(g.health.probedAt) < ttl {
		return *g.health.result
	}

	res, ok := g.probeHealth(ctx)
	g.health.probedAt = now
	if ok || g.health.result == nil {
		g.health.result = &res
	} else {
		g.logger.Warn("health probes failed, serving previous result",
			zap.Bool("previous_healthy", g.health.result.Healthy),
			zap.String("detail", res.Detail))
	}
	return *g.health.result
}

// probeHealth runs the probe sequence. ok is true when some endpoint
// answered, healthy or not-yet-configured alike.
func (g *Gateway) probeHealth(ctx context.Context) (HealthResult, bool) {
	timeout := g.cfg.Tuning.HealthProbeTimeout.Duration
	var lastErr error
	for _, endpoint := range healthEndpoints {
		if err := g.engine.Ping(ctx, endpoint, timeout); err != nil {
			lastErr = err
			continue
		}
		return HealthResult{
			Healthy:   true,
			Endpoint:  endpoint,
			CheckedAt: g.now().UnixMilli(),
		}, true
	}
	detail := "all probes failed"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return HealthResult{
		Healthy:   false,
		Detail:    detail,
		CheckedAt: g.now().UnixMilli(),
	}, false
}
