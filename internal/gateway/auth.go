package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/engine"
)

// authNotSupportedMessage is the user-actionable answer when the running
// engine has no phone pairing capability.
const authNotSupportedMessage = "phone authentication is not supported by this engine; pair by scanning the QR code instead"

// RequestPhoneCode asks the engine for a phone pairing code. An engine
// without the capability yields Success=false with an explicit message,
// never a raw transport error.
func (g *Gateway) RequestPhoneCode(ctx context.Context, phoneNumber string) (AuthResult, error) {
	phone := digitsOnly(phoneNumber)
	if phone == "" {
		return AuthResult{}, fmt.Errorf("phone number %q has no digits: %w", phoneNumber, engine.ErrValidation)
	}

	if _, err := g.StartSession(ctx); err != nil {
		return AuthResult{}, fmt.Errorf("ensure session for pairing: %w", err)
	}

	raw, err := g.engine.RequestCode(ctx, g.cfg.Session, phone, g.cfg.Tuning.CallTimeout.Duration)
	if err != nil {
		if isAuthUnsupported(err) {
			g.logger.Info("phone pairing not supported by engine", zap.String("session", g.cfg.Session))
			return AuthResult{Success: false, Message: authNotSupportedMessage}, nil
		}
		return AuthResult{}, fmt.Errorf("request pairing code: %w", err)
	}

	code := extractPairingCode(raw)
	if code == "" {
		g.logger.Warn("pairing response carried no recognizable code",
			zap.String("session", g.cfg.Session))
	}
	return AuthResult{Success: true, Code: code, Message: "pairing code requested"}, nil
}

// VerifyPhoneCode submits the code the user received. On success the
// session is marked ready and a phone-method authenticated event is
// emitted without waiting for the engine's status webhook.
func (g *Gateway) VerifyPhoneCode(ctx context.Context, phoneNumber, code string) (AuthResult, error) {
	phone := digitsOnly(phoneNumber)
	if phone == "" {
		return AuthResult{}, fmt.Errorf("phone number %q has no digits: %w", phoneNumber, engine.ErrValidation)
	}
	if strings.TrimSpace(code) == "" {
		return AuthResult{}, fmt.Errorf("empty pairing code: %w", engine.ErrValidation)
	}

	err := g.engine.AuthorizeCode(ctx, g.cfg.Session, phone, strings.TrimSpace(code), g.cfg.Tuning.CallTimeout.Duration)
	if err != nil {
		if isAuthUnsupported(err) {
			return AuthResult{Success: false, Message: authNotSupportedMessage}, nil
		}
		return AuthResult{}, fmt.Errorf("verify pairing code: %w", err)
	}

	g.applyState(StateWorking)
	g.publish(EventAuthenticated, AuthenticatedPayload{
		Session: g.cfg.Session,
		Method:  "phone",
	})
	g.publishSnapshot(g.session.Snapshot(), g.now())
	return AuthResult{Success: true, Message: "authenticated"}, nil
}

// isAuthUnsupported classifies the "capability absent" answers: engines
// without phone pairing respond 404, 405 or 501 on these endpoints.
func isAuthUnsupported(err error) bool {
	return errors.Is(err, engine.ErrNotSupported) || errors.Is(err, engine.ErrNotFound)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractPairingCode mines the code from the response shapes engines use:
// a bare string, {code}, {pairingCode} or {data:{code}}.
func extractPairingCode(raw engine.Raw) string {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return strings.TrimSpace(bare)
	}
	var payload struct {
		Code        string `json:"code"`
		PairingCode string `json:"pairingCode"`
		Data        struct {
			Code        string `json:"code"`
			PairingCode string `json:"pairingCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, c := range []string{payload.Code, payload.PairingCode, payload.Data.Code, payload.Data.PairingCode} {
		if c != "" {
			return strings.TrimSpace(c)
		}
	}
	return ""
}
