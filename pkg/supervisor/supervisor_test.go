package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/sandbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/secretbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

func testSupervisor(t *testing.T) (*Supervisor, *store.Store, *layout.Manager) {
	t.Helper()

	box, err := secretbox.NewFromKeyMaterial("test-key")
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "catalog.db"), box)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Plans:            config.DefaultPlans(),
		DataRoot:         dir,
		RestartBaseDelay: 5 * time.Second,
		RestartMaxDelay:  90 * time.Second,
		LogRingSize:      100,
		PythonBin:        "python3",
		VenvTimeout:      time.Minute,
		InstallTimeout:   time.Minute,
	}
	lm := layout.NewManager(dir)
	gate := quota.NewGate(cfg, st, lm)
	sb := sandbox.NewProvisioner(cfg, st, lm, gate)
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	require.NoError(t, st.UpsertUser(context.Background(), 1, "alice"))
	return New(cfg, st, lm, gate, sb, broker), st, lm
}

func TestRingTruncation(t *testing.T) {
	r := NewRing(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.Push(l)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"c", "d", "e"}, r.Tail(10))
	assert.Equal(t, []string{"e"}, r.Tail(1))
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing(0)
	r.Push("one")
	r.Push("two")
	assert.Equal(t, []string{"two"}, r.Tail(5))
}

func TestBackoffStep(t *testing.T) {
	max := 90 * time.Second

	// P7: d0 <= d1 <= ... <= max, d_{i+1} = min(max, 2*d_i)
	wantDelays := []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second,
		40 * time.Second, 80 * time.Second, 90 * time.Second, 90 * time.Second,
	}

	current := 5 * time.Second
	for i, want := range wantDelays {
		delay, next := backoffStep(current, max)
		assert.Equal(t, want, delay, "delay %d", i)
		assert.LessOrEqual(t, delay, max)
		current = next
	}
}

func TestBackoffStepClampsOversized(t *testing.T) {
	delay, next := backoffStep(10*time.Minute, 90*time.Second)
	assert.Equal(t, 90*time.Second, delay)
	assert.Equal(t, 90*time.Second, next)
}

func TestLogLineFormats(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

	assert.Equal(t, "===== START 2024-05-01 12:30:45 | project=42 =====", startHeader(42, ts))
	assert.Equal(t, "===== EXIT 2024-05-01 12:30:45 | code=1 =====", exitTrailer(1, ts))
	assert.Equal(t, "[watchdog] RAM limit exceeded", watchdogLine("RAM limit exceeded"))
	assert.True(t, strings.HasPrefix(supervisorLine("x"), "[hostingbot] "))
}

func TestAppendLogLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	require.NoError(t, appendLogLine(path, "first"))
	require.NoError(t, appendLogLine(path, "second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRegistryAccounting(t *testing.T) {
	s, _, _ := testSupervisor(t)

	assert.Equal(t, 0, s.LiveCount())
	assert.False(t, s.IsLive(1))

	rtA := &Runtime{ProjectID: 1, OwnerID: 1, Name: "a", ring: NewRing(10)}
	rtB := &Runtime{ProjectID: 2, OwnerID: 1, Name: "b", ring: NewRing(10)}
	rtC := &Runtime{ProjectID: 3, OwnerID: 2, Name: "c", ring: NewRing(10)}

	s.mu.Lock()
	s.registry[1] = rtA
	s.registry[2] = rtB
	s.registry[3] = rtC
	s.mu.Unlock()

	assert.Equal(t, 3, s.LiveCount())
	assert.Equal(t, 2, s.LiveCountFor(1))
	assert.Equal(t, 1, s.LiveCountFor(2))
	assert.True(t, s.IsLive(2))
	assert.Len(t, s.ListRunning(), 3)
	assert.Len(t, s.RunningFor(1), 2)

	// removeIfCurrent only drops the exact runtime instance
	impostor := &Runtime{ProjectID: 1}
	s.removeIfCurrent(impostor)
	assert.True(t, s.IsLive(1))

	s.removeIfCurrent(rtA)
	assert.False(t, s.IsLive(1))
	assert.Equal(t, 1, s.LiveCountFor(1))
}

func TestLogTail(t *testing.T) {
	s, _, _ := testSupervisor(t)

	_, live := s.LogTail(1, 5)
	assert.False(t, live)

	rt := &Runtime{ProjectID: 1, ring: NewRing(10)}
	rt.ring.Push("hello")
	rt.ring.Push("world")
	s.mu.Lock()
	s.registry[1] = rt
	s.mu.Unlock()

	lines, live := s.LogTail(1, 5)
	assert.True(t, live)
	assert.Equal(t, []string{"hello", "world"}, lines)
}

func TestStartRejectsMissingProject(t *testing.T) {
	s, _, _ := testSupervisor(t)

	err := s.Start(context.Background(), 1, 404)
	assert.Equal(t, errdefs.KindNotFound, errdefs.KindOf(err))
}

func TestStartRejectsAlreadyRunning(t *testing.T) {
	s, st, _ := testSupervisor(t)
	ctx := context.Background()

	id, err := st.CreateProject(ctx, 1, 1, "mybot", "bot.py", true)
	require.NoError(t, err)

	s.mu.Lock()
	s.registry[id] = &Runtime{ProjectID: id, OwnerID: 1, ring: NewRing(10)}
	s.mu.Unlock()

	err = s.Start(ctx, 1, id)
	assert.Equal(t, errdefs.KindAlreadyRunning, errdefs.KindOf(err))
}

func TestStartRejectsBannedOwner(t *testing.T) {
	s, st, _ := testSupervisor(t)
	ctx := context.Background()

	id, err := st.CreateProject(ctx, 1, 1, "mybot", "bot.py", true)
	require.NoError(t, err)
	require.NoError(t, st.Ban(ctx, 99, 1, "abuse"))

	err = s.Start(ctx, 1, id)
	assert.Equal(t, errdefs.KindBanned, errdefs.KindOf(err))
}

func TestStartRejectsConcurrentRunLimit(t *testing.T) {
	s, st, _ := testSupervisor(t)
	ctx := context.Background()

	id, err := st.CreateProject(ctx, 1, 1, "third", "bot.py", true)
	require.NoError(t, err)

	// Free plan allows two concurrent runs
	s.mu.Lock()
	s.registry[900] = &Runtime{ProjectID: 900, OwnerID: 1, ring: NewRing(10)}
	s.registry[901] = &Runtime{ProjectID: 901, OwnerID: 1, ring: NewRing(10)}
	s.mu.Unlock()

	err = s.Start(ctx, 1, id)
	assert.Equal(t, errdefs.KindQuotaExceeded, errdefs.KindOf(err))

	// No run row was created for the rejected start
	open, err2 := st.OpenRun(ctx, id)
	require.NoError(t, err2)
	assert.Nil(t, open)
}

func TestStartRejectsMissingEntrypoint(t *testing.T) {
	s, st, lm := testSupervisor(t)
	ctx := context.Background()

	id, err := st.CreateProject(ctx, 1, 1, "mybot", "bot.py", true)
	require.NoError(t, err)
	require.NoError(t, lm.EnsureProjectDirs(1, id))
	// src exists but bot.py does not

	err = s.Start(ctx, 1, id)
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
}

func TestStartRejectsEscapingEntrypoint(t *testing.T) {
	s, st, lm := testSupervisor(t)
	ctx := context.Background()

	id, err := st.CreateProject(ctx, 1, 1, "mybot", "../../../etc/passwd", true)
	require.NoError(t, err)
	require.NoError(t, lm.EnsureProjectDirs(1, id))

	err = s.Start(ctx, 1, id)
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
}

func TestStopIdempotentOnAbsent(t *testing.T) {
	s, _, _ := testSupervisor(t)

	err := s.Stop(context.Background(), 1, 42, types.RunReasonStop)
	assert.Equal(t, errdefs.KindNotRunning, errdefs.KindOf(err))
}

func TestStopAllForStopsOnlyThatUser(t *testing.T) {
	s, _, _ := testSupervisor(t)

	// Runtimes whose waiter already finished: done is closed so Stop
	// returns immediately after signalling
	mkRuntime := func(pid int64, owner int64) *Runtime {
		rt := &Runtime{ProjectID: pid, OwnerID: owner, PID: 0, ring: NewRing(10), done: make(chan struct{})}
		close(rt.done)
		return rt
	}

	s.mu.Lock()
	s.registry[1] = mkRuntime(1, 1)
	s.registry[2] = mkRuntime(2, 1)
	s.registry[3] = mkRuntime(3, 2)
	s.mu.Unlock()

	stopped := s.StopAllFor(context.Background(), 99, 1, types.RunReasonBan)
	assert.Equal(t, 2, stopped)
	assert.True(t, s.IsLive(3))
}
