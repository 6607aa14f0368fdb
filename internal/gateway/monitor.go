package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartMonitor launches the background status poll that keeps the session
// view fresh even when no webhooks arrive.
func (g *Gateway) StartMonitor(ctx context.Context) {
	ctx, g.monitorCancel = context.WithCancel(ctx)
	g.monitorDone = make(chan struct{})
	go g.monitorLoop(ctx)
}

// StopMonitor stops the poll and waits for the loop to exit.
func (g *Gateway) StopMonitor() {
	if g.monitorCancel == nil {
		return
	}
	g.monitorCancel()
	<-g.monitorDone
}

func (g *Gateway) monitorLoop(ctx context.Context) {
	defer close(g.monitorDone)
	ticker := time.NewTicker(g.cfg.Tuning.MonitorInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.monitorTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// monitorTick refreshes the remote status and publishes only actual state
// changes; the webhook path owns per-delivery events.
func (g *Gateway) monitorTick(ctx context.Context) {
	before := g.session.Snapshot()
	after := g.fetchStatus(ctx)
	if after.State == before.State {
		return
	}
	g.logger.Info("monitor observed state change",
		zap.String("session", after.Name),
		zap.String("from", string(before.State)),
		zap.String("to", string(after.State)))
	g.publish(EventStatusChange, StatusChangePayload{
		Session: after.Name,
		From:    before.State,
		To:      after.State,
	})
	g.publishSnapshot(after, g.now())
}
