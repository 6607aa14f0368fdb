package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/bus"
	"github.com/mementolab/wagate/internal/config"
	"github.com/mementolab/wagate/internal/engine"
	"github.com/mementolab/wagate/internal/observability"
)

// EngineAPI is the slice of the remote engine client the gateway uses.
// *engine.Client satisfies it; tests inject fakes.
type EngineAPI interface {
	CreateSession(ctx context.Context, name string, timeout time.Duration) error
	GetSession(ctx context.Context, name string, timeout time.Duration) (*engine.SessionInfo, error)
	DeleteSession(ctx context.Context, name string, timeout time.Duration) error
	StartSession(ctx context.Context, name string, timeout time.Duration) error
	ConfigureWebhooks(ctx context.Context, name string, hooks []engine.WebhookConfig, timeout time.Duration) error
	GetQR(ctx context.Context, name string, timeout time.Duration) (*engine.QRResult, error)
	RequestCode(ctx context.Context, name, phone string, timeout time.Duration) (engine.Raw, error)
	AuthorizeCode(ctx context.Context, name, phone, code string, timeout time.Duration) error
	SendText(ctx context.Context, name, chatID, text string, timeout time.Duration) (engine.Raw, error)
	SendFile(ctx context.Context, name, chatID, fileURL, caption string, timeout time.Duration) (engine.Raw, error)
	ListChats(ctx context.Context, name string, opts engine.ListOptions, timeout time.Duration) (engine.Raw, error)
	ChatsOverview(ctx context.Context, name string, timeout time.Duration) (engine.Raw, error)
	ListGroups(ctx context.Context, name string, opts engine.ListOptions, timeout time.Duration) (engine.Raw, error)
	GetGroup(ctx context.Context, name, groupID string, timeout time.Duration) (engine.Raw, error)
	GetGroupParticipants(ctx context.Context, name, groupID string, timeout time.Duration) (engine.Raw, error)
	RefreshGroups(ctx context.Context, name string, timeout time.Duration) error
	ListMessages(ctx context.Context, name, chatID string, limit int, timeout time.Duration) (engine.Raw, error)
	Ping(ctx context.Context, path string, timeout time.Duration) error
}

// Broadcaster publishes realtime snapshots for UI consumers.
// Implementations must not block.
type Broadcaster interface {
	Broadcast(kind string, payload any)
}

// Forwarder hands group image messages to the downstream processing
// collaborator. Failures are logged by the gateway, never propagated.
type Forwarder interface {
	ForwardImage(ctx context.Context, msg ImageMessage) error
}

// Gateway orchestrates the lifecycle of one remote messaging session:
// session control, QR/phone pairing, chat retrieval, webhook dispatch
// and background status monitoring. One instance per process.
type Gateway struct {
	cfg         *config.Config
	engine      EngineAPI
	bus         *bus.Bus
	broadcaster Broadcaster
	forwarder   Forwarder
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	session *sessionView
	health  *healthCache

	startMu sync.Mutex

	qrMu sync.Mutex
	qr   *qrArtifact

	seenMu   sync.Mutex
	seenIDs  []string
	seenSet  map[string]struct{}
	seenNext int

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New assembles a gateway instance. broadcaster, forwarder and metrics
// may be nil when the deployment has no realtime consumers, image
// pipeline or scrape target.
func New(cfg *config.Config, eng EngineAPI, b *bus.Bus, broadcaster Broadcaster, forwarder Forwarder, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	const seenCap = 256
	return &Gateway{
		cfg:         cfg,
		engine:      eng,
		bus:         b,
		broadcaster: broadcaster,
		forwarder:   forwarder,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		session:     newSessionView(cfg.Session),
		health:      &healthCache{},
		seenIDs:     make([]string, seenCap),
		seenSet:     make(map[string]struct{}, seenCap),
	}
}

// SessionName returns the configured session name.
func (g *Gateway) SessionName() string {
	return g.cfg.Session
}

// Initialize is the best-effort startup routine: probe engine health,
// then bring the configured session up. The daemon still comes up when
// this fails; the monitor and later callers recover.
func (g *Gateway) Initialize(ctx context.Context) {
	health := g.HealthCheck(ctx)
	if !health.Healthy {
		g.logger.Warn("engine not healthy at startup, deferring session start",
			zap.String("detail", health.Detail))
		return
	}
	if _, err := g.StartSession(ctx); err != nil {
		g.logger.Warn("session start at startup failed", zap.Error(err))
		g.publish(EventError, ErrorPayload{
			Session: g.cfg.Session,
			Scope:   "initialize",
			Err:     err.Error(),
		})
	}
}

// applyState records a state observation shared by webhook dispatch, the
// monitor and lifecycle calls. Unexpected jumps are logged, never rejected:
// the engine owns the truth and the view is last-write-wins.
func (g *Gateway) applyState(state State) (prev State) {
	now := g.now()
	prev = g.session.SetState(state, now)
	if !expectedTransition(prev, state) {
		g.logger.Warn("unexpected session state transition",
			zap.String("from", string(prev)),
			zap.String("to", string(state)))
	}
	if g.metrics != nil {
		ready := 0.0
		if state == StateWorking {
			ready = 1.0
		}
		g.metrics.SessionReady.Set(ready)
	}
	return prev
}

// markSeen records a webhook event id, reporting whether it was already
// seen. The ring is small on purpose: upstream owns retries, this is
// local replay hygiene only.
func (g *Gateway) markSeen(id string) (dup bool) {
	if id == "" {
		return false
	}
	g.seenMu.Lock()
	defer g.seenMu.Unlock()
	if _, ok := g.seenSet[id]; ok {
		return true
	}
	if old := g.seenIDs[g.seenNext]; old != "" {
		delete(g.seenSet, old)
	}
	g.seenIDs[g.seenNext] = id
	g.seenSet[id] = struct{}{}
	g.seenNext = (g.seenNext + 1) % len(g.seenIDs)
	return false
}
