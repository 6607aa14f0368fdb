package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/engine"
)

// qrArtifact is one generated pairing QR. Within the reuse window it is
// handed out verbatim instead of hitting the engine again.
type qrArtifact struct {
	dataURL     string
	generatedAt time.Time
}

// GetQRCode returns the pairing QR as a data URL. Consecutive calls inside
// the cooldown return the cached artifact even when forced; unforced calls
// inside the reuse window do the same. Otherwise the session is brought to
// SCAN_QR_CODE (starting it if needed, with a bounded wait) and a fresh
// image is fetched.
func (g *Gateway) GetQRCode(ctx context.Context, force bool) (string, error) {
	g.qrMu.Lock()
	defer g.qrMu.Unlock()

	now := g.now()
	if g.qr != nil {
		age := now.Sub(g.qr.generatedAt)
		if age < g.cfg.Tuning.QRCooldown.Duration {
			return g.qr.dataURL, nil
		}
		if !force && age < g.cfg.Tuning.QRReuseWindow.Duration {
			return g.qr.dataURL, nil
		}
	}

	cur := g.GetStatus(ctx)
	if cur.State == StateStopped || cur.State == StateFailed {
		if _, err := g.StartSession(ctx); err != nil {
			return "", fmt.Errorf("start session for QR: %w", err)
		}
	}

	if err := g.waitForScanState(ctx); err != nil {
		return "", err
	}

	result, err := g.engine.GetQR(ctx, g.cfg.Session, g.cfg.Tuning.CallTimeout.Duration)
	if err != nil {
		return "", fmt.Errorf("fetch QR: %w", err)
	}

	dataURL, err := qrDataURL(result)
	if err != nil {
		return "", err
	}

	g.qr = &qrArtifact{dataURL: dataURL, generatedAt: g.now()}
	if g.metrics != nil {
		g.metrics.QRGenerations.Inc()
	}
	g.logger.Info("QR code generated", zap.String("session", g.cfg.Session))
	return dataURL, nil
}

// waitForScanState polls the session until it reaches SCAN_QR_CODE.
// A session that lands in FAILED or STOPPED while waiting, or a deadline
// hit, aborts with a typed error.
func (g *Gateway) waitForScanState(ctx context.Context) error {
	interval := g.cfg.Tuning.QRPollInterval.Duration
	deadline := g.now().Add(g.cfg.Tuning.QRWaitTimeout.Duration)

	for {
		cur := g.fetchStatus(ctx)
		switch cur.State {
		case StateScanQR:
			return nil
		case StateWorking:
			return fmt.Errorf("session already authenticated, no QR to scan: %w", engine.ErrNotReady)
		case StateFailed, StateStopped:
			return fmt.Errorf("session entered %s while waiting for QR: %w", cur.State, engine.ErrNotReady)
		}
		if !g.now().Add(interval).Before(deadline) {
			return fmt.Errorf("session did not reach SCAN_QR_CODE within %s: %w",
				g.cfg.Tuning.QRWaitTimeout.Duration, engine.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for QR state: %w", engine.ErrTimeout)
		case <-time.After(interval):
		}
	}
}

// clearQR drops the cached artifact; stop and restart invalidate it.
func (g *Gateway) clearQR() {
	g.qrMu.Lock()
	g.qr = nil
	g.qrMu.Unlock()
}

// qrDataURL turns the engine's answer into a data URL, rendering the PNG
// locally when the engine hands back a raw pairing value.
func qrDataURL(result *engine.QRResult) (string, error) {
	if result.Value != "" {
		png, err := qrcode.Encode(result.Value, qrcode.Medium, 256)
		if err != nil {
			return "", fmt.Errorf("render QR value: %w", err)
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
	}
	contentType := result.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(result.Image), nil
}
