// Package presence keeps the presence/lastSeen fields on the profile
// document reasonably accurate for "who is online" displays, trading write
// volume against staleness. Delivery of the final offline write on process
// termination is best-effort and not guaranteed; consumers should infer true
// offline status from lastSeen staleness rather than trusting the presence
// enum alone.
package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/pkg/messagequeue"
)

// DefaultInterval is the cadence of the recurring lastSeen refresh.
const DefaultInterval = 5 * time.Minute

// event is the payload published on presence transitions.
type event struct {
	UID      string    `json:"uid"`
	Presence string    `json:"presence"`
	LastSeen time.Time `json:"lastSeen"`
}

// Heartbeat is the periodic and event-driven liveness reporter for one
// session. All writes are idempotent (last-write-wins on presence/lastSeen);
// no ordering guarantee is provided between concurrent teardown signals.
type Heartbeat struct {
	profiles db.ProfileRepository
	events   messagequeue.MessageQueue
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	uid          string
	visible      bool
	running      bool
	lastPresence string
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewHeartbeat creates a Heartbeat. A non-positive interval selects
// DefaultInterval.
func NewHeartbeat(profiles db.ProfileRepository, events messagequeue.MessageQueue, logger *zap.Logger, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Heartbeat{
		profiles:     profiles,
		events:       events,
		logger:       logger,
		interval:     interval,
		now:          time.Now,
		lastPresence: models.PresenceOnline,
	}
}

// Start begins reporting liveness for uid: an immediate write of the
// previous known presence (online by default) with a fresh lastSeen, then a
// recurring lastSeen refresh that only fires while the tab is visible, so a
// backgrounded session does not stay "online" indefinitely.
func (h *Heartbeat) Start(ctx context.Context, uid string) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.uid = uid
	h.visible = true
	h.running = true
	h.cancel = cancel
	h.done = done
	initial := h.lastPresence
	h.mu.Unlock()

	h.write(ctx, uid, initial, true)

	go h.loop(tickCtx, done)
}

// loop is the recurring timer. Each tick refreshes lastSeen only, and only
// while visible and still running. done is passed in rather than read off the
// struct so a Stop racing the goroutine startup cannot make the deferred
// close observe a cleared field.
func (h *Heartbeat) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			uid := h.uid
			shouldWrite := h.running && h.visible
			h.mu.Unlock()
			if !shouldWrite {
				continue
			}
			if err := h.profiles.SetFields(ctx, uid, map[string]interface{}{
				"lastSeen": h.now().UTC(),
			}); err != nil {
				h.logger.Debug("Heartbeat lastSeen refresh failed", zap.String("uid", uid), zap.Error(err))
			}
		}
	}
}

// SetVisibility records a visibility transition: a tab becoming visible
// reports "online", a tab becoming hidden reports "away", each with a fresh
// lastSeen. Repeated reports of the same state are ignored.
func (h *Heartbeat) SetVisibility(ctx context.Context, visible bool) {
	h.mu.Lock()
	if !h.running || h.visible == visible {
		h.mu.Unlock()
		return
	}
	h.visible = visible
	uid := h.uid
	p := models.PresenceAway
	if visible {
		p = models.PresenceOnline
	}
	h.lastPresence = p
	h.mu.Unlock()

	h.write(ctx, uid, p, true)
}

// SignalTeardown attempts to mark the session offline. It is fire-and-forget:
// all errors are swallowed because the network may already be torn down, and
// it is safe to invoke from multiple teardown hooks in any order or
// concurrently. The recurring timer is stopped, not merely muted, so a
// re-login after a teardown signal never runs two tickers side by side.
func (h *Heartbeat) SignalTeardown(ctx context.Context) {
	h.mu.Lock()
	uid := h.uid
	h.mu.Unlock()

	h.Stop()

	if uid == "" {
		return
	}
	h.write(ctx, uid, models.PresenceOffline, false)
}

// MarkOffline writes the offline transition for uid without touching
// reporter state. It exists for teardown paths that have already stopped the
// reporter; errors are swallowed like every other teardown write.
func (h *Heartbeat) MarkOffline(ctx context.Context, uid string) {
	if uid == "" {
		return
	}
	h.write(ctx, uid, models.PresenceOffline, false)
}

// Stop cancels the recurring timer and waits for it to exit. It performs no
// write of its own; teardown hooks own the offline write.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.running = false
	h.cancel = nil
	h.done = nil
	h.uid = ""
	h.lastPresence = models.PresenceOnline
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// write persists a presence transition with a fresh lastSeen and publishes
// the event. When logErrors is false the write is fully silent (teardown).
func (h *Heartbeat) write(ctx context.Context, uid, presence string, logErrors bool) {
	lastSeen := h.now().UTC()
	err := h.profiles.SetFields(ctx, uid, map[string]interface{}{
		"presence": presence,
		"lastSeen": lastSeen,
	})
	if err != nil {
		if logErrors {
			h.logger.Warn("Presence write failed", zap.String("uid", uid),
				zap.String("presence", presence), zap.Error(err))
		}
		return
	}

	if body, err := json.Marshal(event{UID: uid, Presence: presence, LastSeen: lastSeen}); err == nil {
		if err := h.events.Publish(messagequeue.PresenceQueue, body); err != nil && logErrors {
			h.logger.Debug("Presence event publish failed", zap.String("uid", uid), zap.Error(err))
		}
	}
}
