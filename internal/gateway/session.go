package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/engine"
)

// webhookEvents are the engine push notifications the gateway consumes.
var webhookEvents = []string{"session.status", "message"}

// GetStatus returns the session snapshot, refreshing it from the engine
// when the cached view is older than the status TTL. A fetch failure is
// absorbed: the stale snapshot is still the best available answer.
func (g *Gateway) GetStatus(ctx context.Context) Session {
	ttl := g.cfg.Tuning.StatusCacheTTL.Duration
	if g.session.Fresh(g.now(), ttl) {
		return g.session.Snapshot()
	}
	return g.fetchStatus(ctx)
}

// fetchStatus bypasses the TTL and asks the engine directly.
func (g *Gateway) fetchStatus(ctx context.Context) Session {
	timeout := g.cfg.Tuning.CallTimeout.Duration
	info, err := g.engine.GetSession(ctx, g.cfg.Session, timeout)
	switch {
	case err == nil:
		g.applyState(State(info.Status))
	case errors.Is(err, engine.ErrNotFound):
		// No remote session means stopped, not an error.
		g.applyState(StateStopped)
	default:
		g.logger.Warn("status fetch failed, keeping previous view",
			zap.String("session", g.cfg.Session),
			zap.Error(err))
	}
	// Mark fetched even on failure so a degraded engine is not hammered
	// by every status reader.
	g.session.MarkFetched(g.now())
	return g.session.Snapshot()
}

// StartSession brings the configured session up. Idempotent: a session
// already starting, waiting for QR scan or working is returned as-is
// without another remote start call. "Already exists" conflicts from
// creation are absorbed. Webhook registration after a successful start is
// best-effort and never fails the operation.
func (g *Gateway) StartSession(ctx context.Context) (Session, error) {
	g.startMu.Lock()
	defer g.startMu.Unlock()

	name := g.cfg.Session
	timeout := g.cfg.Tuning.CallTimeout.Duration

	cur := g.fetchStatus(ctx)
	switch cur.State {
	case StateWorking, StateScanQR, StateStarting:
		return cur, nil
	}

	if err := g.engine.CreateSession(ctx, name, timeout); err != nil {
		if !errors.Is(err, engine.ErrConflict) {
			return g.session.Snapshot(), fmt.Errorf("create session %s: %w", name, err)
		}
		g.logger.Info("session already exists, starting it", zap.String("session", name))
	}

	if err := g.startWithRetries(ctx, name, timeout); err != nil {
		g.applyState(StateFailed)
		return g.session.Snapshot(), fmt.Errorf("start session %s: %w", name, err)
	}
	g.applyState(StateStarting)

	g.registerWebhooks(ctx, name, timeout)

	return g.fetchStatus(ctx), nil
}

func (g *Gateway) startWithRetries(ctx context.Context, name string, timeout time.Duration) error {
	attempts := g.cfg.Tuning.StartAttempts
	backoff := g.cfg.Tuning.StartBackoff.Duration
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
		}
		err = g.engine.StartSession(ctx, name, timeout)
		if err == nil {
			return nil
		}
		if errors.Is(err, engine.ErrConflict) {
			// Already started on the engine side.
			return nil
		}
		g.logger.Warn("session start attempt failed",
			zap.String("session", name),
			zap.Int("attempt", i+1),
			zap.Error(err))
	}
	return err
}

// registerWebhooks points the engine at our ingestion endpoint. Failure is
// logged only: a session without webhooks still works via polling.
func (g *Gateway) registerWebhooks(ctx context.Context, name string, timeout time.Duration) {
	url := g.cfg.HTTP.WebhookURL
	if url == "" {
		return
	}
	hooks := []engine.WebhookConfig{{URL: url, Events: webhookEvents}}
	if err := g.engine.ConfigureWebhooks(ctx, name, hooks, timeout); err != nil {
		g.logger.Warn("webhook registration failed",
			zap.String("session", name),
			zap.String("url", url),
			zap.Error(err))
	}
}

// StopSession deletes the remote session. "Not found" means it is already
// gone and counts as success. The cached QR artifact dies with the session.
func (g *Gateway) StopSession(ctx context.Context) error {
	name := g.cfg.Session
	timeout := g.cfg.Tuning.CallTimeout.Duration
	if err := g.engine.DeleteSession(ctx, name, timeout); err != nil && !errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("stop session %s: %w", name, err)
	}
	g.clearQR()
	prev := g.applyState(StateStopped)
	if prev != StateStopped {
		g.publish(EventStatusChange, StatusChangePayload{Session: name, From: prev, To: StateStopped})
		g.publishSnapshot(g.session.Snapshot(), g.now())
	}
	return nil
}

// RestartSession stops (ignoring failures), waits a short grace period for
// the engine to release resources, then starts again.
func (g *Gateway) RestartSession(ctx context.Context) (Session, error) {
	name := g.cfg.Session
	if err := g.StopSession(ctx); err != nil {
		g.logger.Warn("stop during restart failed, continuing", zap.String("session", name), zap.Error(err))
	}
	time.Sleep(g.cfg.Tuning.RestartGrace.Duration)
	sess, err := g.StartSession(ctx)
	if err != nil {
		return sess, err
	}
	g.publish(EventSessionRestarted, RestartedPayload{Session: name})
	return sess, nil
}

// RestartFailedSession recovers a FAILED session by deleting and recreating
// it. Any other state is a no-op success: FAILED is terminal only until an
// explicit delete+recreate.
func (g *Gateway) RestartFailedSession(ctx context.Context) (Session, error) {
	cur := g.fetchStatus(ctx)
	if cur.State != StateFailed {
		return cur, nil
	}
	g.logger.Info("recovering failed session", zap.String("session", g.cfg.Session))
	return g.RestartSession(ctx)
}

// AutoRecoverSession is the monitor-facing alias of RestartFailedSession.
func (g *Gateway) AutoRecoverSession(ctx context.Context) (Session, error) {
	return g.RestartFailedSession(ctx)
}
