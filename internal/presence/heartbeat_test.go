package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/pkg/messagequeue"
)

// recordingProfileRepo records SetFields calls; the other repository methods
// are unused by the heartbeat.
type recordingProfileRepo struct {
	mu     sync.Mutex
	writes []map[string]interface{}
	err    error
}

func (r *recordingProfileRepo) GetByUID(context.Context, string) (*models.UserProfile, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingProfileRepo) Create(context.Context, *models.UserProfile) error {
	return errors.New("not implemented")
}

func (r *recordingProfileRepo) SetFields(_ context.Context, _ string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	r.writes = append(r.writes, cp)
	return nil
}

func (r *recordingProfileRepo) Watch(context.Context, string, func(*models.UserProfile)) (func(), error) {
	return func() {}, nil
}

func (r *recordingProfileRepo) presenceWrites() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, w := range r.writes {
		if p, ok := w["presence"].(string); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *recordingProfileRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

func newTestHeartbeat(repo *recordingProfileRepo, interval time.Duration) *Heartbeat {
	return NewHeartbeat(repo, messagequeue.NewNoOpQueue(), zap.NewNop(), interval)
}

func TestStartWritesOnlineImmediately(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)
	defer h.Stop()

	h.Start(context.Background(), "u1")

	require.Equal(t, []string{models.PresenceOnline}, repo.presenceWrites())
	repo.mu.Lock()
	_, hasLastSeen := repo.writes[0]["lastSeen"]
	repo.mu.Unlock()
	assert.True(t, hasLastSeen)
}

func TestVisibilityTransitions(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)
	defer h.Stop()
	h.Start(context.Background(), "u1")

	h.SetVisibility(context.Background(), false)
	h.SetVisibility(context.Background(), false) // duplicate, must be ignored
	h.SetVisibility(context.Background(), true)
	h.SetVisibility(context.Background(), true) // duplicate, must be ignored

	assert.Equal(t, []string{
		models.PresenceOnline,
		models.PresenceAway,
		models.PresenceOnline,
	}, repo.presenceWrites())
}

func TestTicksRefreshLastSeenOnlyWhileVisible(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, 10*time.Millisecond)
	defer h.Stop()
	h.Start(context.Background(), "u1")
	base := repo.writeCount()

	require.Eventually(t, func() bool {
		return repo.writeCount() > base
	}, time.Second, 5*time.Millisecond, "expected at least one tick write while visible")

	// Tick writes refresh lastSeen only; they never carry a presence field.
	repo.mu.Lock()
	tick := repo.writes[len(repo.writes)-1]
	repo.mu.Unlock()
	_, hasPresence := tick["presence"]
	assert.False(t, hasPresence)
	_, hasLastSeen := tick["lastSeen"]
	assert.True(t, hasLastSeen)
}

func TestTicksAreSuppressedWhileHidden(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, 10*time.Millisecond)
	defer h.Stop()
	h.Start(context.Background(), "u1")

	h.SetVisibility(context.Background(), false)
	base := repo.writeCount()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, base, repo.writeCount(), "hidden sessions must not refresh lastSeen")
}

func TestSignalTeardownWritesOfflineAndSwallowsErrors(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)
	h.Start(context.Background(), "u1")

	h.SignalTeardown(context.Background())
	h.Stop()

	writes := repo.presenceWrites()
	assert.Equal(t, models.PresenceOffline, writes[len(writes)-1])

	// A failing store must not panic or surface anywhere.
	failing := &recordingProfileRepo{err: errors.New("network gone")}
	h2 := newTestHeartbeat(failing, time.Minute)
	h2.Start(context.Background(), "u2")
	h2.SignalTeardown(context.Background())
	h2.Stop()
}

func TestSignalTeardownWithoutSessionIsNoOp(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)

	h.SignalTeardown(context.Background())
	assert.Zero(t, repo.writeCount())
}

func TestStopPerformsNoWrite(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)
	h.Start(context.Background(), "u1")
	base := repo.writeCount()

	h.Stop()
	assert.Equal(t, base, repo.writeCount())
}

func TestStartThenImmediateStopIsSafe(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)

	// A stop racing the loop goroutine's startup must neither panic nor
	// block waiting on the wrong channel.
	for i := 0; i < 100; i++ {
		h.Start(context.Background(), "u1")
		h.Stop()
	}
}

func TestStartAfterTeardownRunsSingleTicker(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, 20*time.Millisecond)

	h.Start(context.Background(), "u1")
	h.SignalTeardown(context.Background())
	base := repo.writeCount()

	h.Start(context.Background(), "u2")
	time.Sleep(150 * time.Millisecond)
	h.Stop()

	// One write for the initial online transition, then at most one ticker's
	// worth of lastSeen refreshes. A leaked ticker from before the teardown
	// would roughly double the count.
	ticks := repo.writeCount() - base - 1
	assert.LessOrEqual(t, ticks, 10, "teardown must cancel the previous ticker")
}

func TestNoTicksAfterSignalTeardown(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, 10*time.Millisecond)

	h.Start(context.Background(), "u1")
	h.SignalTeardown(context.Background())
	base := repo.writeCount()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, base, repo.writeCount())
}

func TestRestartAfterStop(t *testing.T) {
	repo := &recordingProfileRepo{}
	h := newTestHeartbeat(repo, time.Minute)

	h.Start(context.Background(), "u1")
	h.Stop()
	h.Start(context.Background(), "u2")
	defer h.Stop()

	assert.Equal(t, []string{models.PresenceOnline, models.PresenceOnline}, repo.presenceWrites())
}
