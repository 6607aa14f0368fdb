package gateway

import (
	"sync"
	"time"
)

// State is the gateway's view of the remote session lifecycle.
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateScanQR   State = "SCAN_QR_CODE"
	StateWorking  State = "WORKING"
	StateFailed   State = "FAILED"
)

// expectedTransitions documents the engine's normal lifecycle. The engine
// owns the truth, so unexpected transitions are accepted (last write wins)
// and only logged.
var expectedTransitions = map[State][]State{
	StateStopped:  {StateStarting, StateFailed},
	StateStarting: {StateScanQR, StateWorking, StateStopped, StateFailed},
	StateScanQR:   {StateWorking, StateStopped, StateFailed},
	StateWorking:  {StateStopped, StateStarting, StateScanQR, StateFailed},
	StateFailed:   {StateStopped, StateStarting},
}

func expectedTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range expectedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the gateway's snapshot of the remote session.
type Session struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ready reports whether the session is authenticated and connected.
func (s Session) Ready() bool {
	return s.State == StateWorking
}

// sessionView guards the session snapshot shared by API handlers, the
// status monitor and webhook dispatch. Writers replace whole snapshots so
// readers never observe a half-updated composite.
type sessionView struct {
	mu        sync.RWMutex
	current   Session
	fetchedAt time.Time
}

func newSessionView(name string) *sessionView {
	return &sessionView{
		current: Session{Name: name, State: StateStopped},
	}
}

// Snapshot returns a copy of the current session.
func (v *sessionView) Snapshot() Session {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// SetState records a state observation and returns the previous state.
func (v *sessionView) SetState(state State, now time.Time) (prev State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	prev = v.current.State
	v.current.State = state
	v.current.UpdatedAt = now
	return prev
}

// MarkFetched records a successful (or absorbed-failure) remote status
// fetch so the TTL gate does not hot-loop a degraded engine.
func (v *sessionView) MarkFetched(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fetchedAt = now
}

// Fresh reports whether the last remote fetch is within ttl of now.
func (v *sessionView) Fresh(now time.Time, ttl time.Duration) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.fetchedAt.IsZero() && now.Sub(v.fetchedAt) < ttl
}
