package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/metrics"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/sandbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

const (
	// gracePeriod is how long Stop waits after graceful termination before
	// escalating to a tree kill
	gracePeriod = 8 * time.Second

	// autostartPacing spreads boot-time launches so sandbox provisioning
	// does not stampede
	autostartPacing = 150 * time.Millisecond

	// crashTailLines caps the log excerpt attached to crash notifications
	crashTailLines = 25
)

// Supervisor owns the registry of live runtimes and all lifecycle
// transitions. For a given project, Start/Stop/Restart are serialized; at any
// instant at most one transition is in flight.
type Supervisor struct {
	cfg     *config.Config
	store   *store.Store
	layout  *layout.Manager
	gate    *quota.Gate
	sandbox *sandbox.Provisioner
	events  *events.Broker
	logger  zerolog.Logger

	mu       sync.Mutex
	registry map[int64]*Runtime

	// lifecycleMu serializes transitions per project without holding the
	// registry lock across a spawn
	lifecycleMu sync.Mutex
	lifecycle   map[int64]*sync.Mutex

	shutdownCh chan struct{}
	shutdown   sync.Once
}

// New creates a supervisor
func New(cfg *config.Config, st *store.Store, lm *layout.Manager, gate *quota.Gate, sb *sandbox.Provisioner, broker *events.Broker) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		store:      st,
		layout:     lm,
		gate:       gate,
		sandbox:    sb,
		events:     broker,
		logger:     log.WithComponent("supervisor"),
		registry:   make(map[int64]*Runtime),
		lifecycle:  make(map[int64]*sync.Mutex),
		shutdownCh: make(chan struct{}),
	}
}

// projectLock returns the per-project lifecycle mutex
func (s *Supervisor) projectLock(projectID int64) *sync.Mutex {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	l, ok := s.lifecycle[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.lifecycle[projectID] = l
	}
	return l
}

// IsLive reports whether the project has a live runtime
func (s *Supervisor) IsLive(projectID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registry[projectID]
	return ok
}

// LiveCount returns the number of live runtimes
func (s *Supervisor) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registry)
}

// LiveCountFor returns the number of live runtimes owned by a user, derived
// by scanning the registry
func (s *Supervisor) LiveCountFor(ownerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rt := range s.registry {
		if rt.OwnerID == ownerID {
			n++
		}
	}
	return n
}

// ListRunning returns point-in-time snapshots of every live runtime
func (s *Supervisor) ListRunning() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Info, 0, len(s.registry))
	for _, rt := range s.registry {
		out = append(out, rt.info())
	}
	return out
}

// RunningFor returns snapshots of a user's live runtimes
func (s *Supervisor) RunningFor(ownerID int64) []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Info
	for _, rt := range s.registry {
		if rt.OwnerID == ownerID {
			out = append(out, rt.info())
		}
	}
	return out
}

// Start launches a project's child process. The actor, when non-zero, lands
// in the audit trail.
func (s *Supervisor) Start(ctx context.Context, actor, projectID int64) error {
	return s.start(ctx, actor, projectID, s.cfg.RestartBaseDelay)
}

// start is the shared path for operator starts and waiter restarts; backoff
// seeds the new runtime's crash delay
func (s *Supervisor) start(ctx context.Context, actor, projectID int64, backoff time.Duration) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	// Admission, before any side effect
	if s.IsLive(projectID) {
		return errdefs.New(errdefs.KindAlreadyRunning, "project is already running")
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.gate.CheckBanned(ctx, project.OwnerID); err != nil {
		return err
	}
	if err := s.gate.CheckConcurrentRuns(ctx, project.OwnerID, s.LiveCountFor(project.OwnerID)); err != nil {
		return err
	}

	srcRoot := s.layout.SourceRoot(project.OwnerID, project.ID)
	entryAbs, err := layout.SafeJoin(srcRoot, filepath.FromSlash(project.Entrypoint))
	if err != nil {
		return errdefs.New(errdefs.KindInvalid, "entrypoint %q is not a valid project path", project.Entrypoint)
	}
	if _, err := os.Stat(entryAbs); err != nil {
		return errdefs.New(errdefs.KindInvalid, "entrypoint %q does not exist", project.Entrypoint)
	}

	if err := s.sandbox.Ensure(ctx, project.OwnerID, project.ID); err != nil {
		return err
	}

	// Child environment: service environment plus decrypted project env,
	// project values winning; output unbuffered so the pump sees lines live
	projectEnv, err := s.store.GetEnvDecrypted(ctx, project.ID)
	if err != nil {
		return errdefs.Internal(err)
	}
	env := append(os.Environ(), "PYTHONUNBUFFERED=1")
	for k, v := range projectEnv {
		env = append(env, k+"="+v)
	}

	logPath := s.layout.LogFile(project.OwnerID, project.ID)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return errdefs.Internal(err)
	}
	if err := appendLogLine(logPath, startHeader(project.ID, time.Now())); err != nil {
		return errdefs.Internal(err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return errdefs.Internal(err)
	}

	cmd := exec.Command(s.sandbox.PythonPath(project.OwnerID, project.ID), entryAbs)
	cmd.Dir = srcRoot
	cmd.Env = env
	cmd.Stdout = pw
	cmd.Stderr = pw
	// Own process group so the whole tree can be signalled
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return errdefs.Wrap(errdefs.KindInternal, err, "failed to spawn %q", project.Entrypoint)
	}
	pw.Close() // the child holds the write side now

	runID, err := s.store.StartRun(ctx, project.ID, cmd.Process.Pid)
	if err != nil {
		// Spawn succeeded but the catalog write failed: tear the child
		// down before reporting
		TreeKill(cmd.Process.Pid)
		_ = cmd.Wait()
		pr.Close()
		return errdefs.Internal(err)
	}

	rt := &Runtime{
		ProjectID:  project.ID,
		OwnerID:    project.OwnerID,
		Name:       project.Name,
		Entrypoint: project.Entrypoint,
		RunID:      runID,
		PID:        cmd.Process.Pid,
		StartedAt:  time.Now(),
		cmd:        cmd,
		output:     pr,
		logPath:    logPath,
		ring:       NewRing(s.cfg.LogRingSize),
		backoff:    backoff,
		pumpDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.registry[project.ID] = rt
	s.mu.Unlock()

	go s.pump(rt)
	go s.wait(rt)

	metrics.StartsTotal.Inc()
	if actor != 0 {
		s.store.AppendAudit(ctx, actor, "lifecycle.start", fmt.Sprintf("project:%d", project.ID), "")
	}
	s.events.Publish(&events.Event{
		Type:    events.EventProjectStarted,
		UserID:  project.OwnerID,
		Message: fmt.Sprintf("%s started", project.Name),
	})
	s.logger.Info().
		Int64("project_id", project.ID).
		Int("pid", cmd.Process.Pid).
		Int64("run_id", runID).
		Msg("Project started")

	return nil
}

// Stop terminates a project's runtime: graceful termination, a bounded wait,
// then a tree kill. Idempotent on absent runtimes.
func (s *Supervisor) Stop(ctx context.Context, actor, projectID int64, reason types.RunReason) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	return s.stopLocked(ctx, actor, projectID, reason)
}

func (s *Supervisor) stopLocked(ctx context.Context, actor, projectID int64, reason types.RunReason) error {
	s.mu.Lock()
	rt, ok := s.registry[projectID]
	s.mu.Unlock()
	if !ok {
		return errdefs.New(errdefs.KindNotRunning, "project is not running")
	}

	rt.markStopping(reason)

	// Graceful termination of the whole group first
	if rt.PID > 0 {
		_ = syscall.Kill(-rt.PID, syscall.SIGTERM)
	}

	select {
	case <-rt.done:
	case <-time.After(gracePeriod):
		s.logger.Warn().Int64("project_id", projectID).Msg("Graceful stop timed out, killing process tree")
		TreeKill(rt.PID)
		select {
		case <-rt.done:
		case <-time.After(5 * time.Second):
			s.logger.Error().Int64("project_id", projectID).Msg("Runtime did not finish postmortem after tree kill")
		}
	}

	if actor != 0 {
		s.store.AppendAudit(ctx, actor, "lifecycle.stop", fmt.Sprintf("project:%d", projectID), string(reason))
	}
	s.events.Publish(&events.Event{
		Type:    events.EventProjectStopped,
		UserID:  rt.OwnerID,
		Message: fmt.Sprintf("%s stopped", rt.Name),
	})
	return nil
}

// Restart stops then starts a project, one logical operation in the audit
// trail
func (s *Supervisor) Restart(ctx context.Context, actor, projectID int64) error {
	err := s.Stop(ctx, 0, projectID, types.RunReasonRestart)
	switch {
	case err == nil:
		time.Sleep(time.Second)
	case !errdefs.IsKind(err, errdefs.KindNotRunning):
		return err
	}

	if err := s.Start(ctx, 0, projectID); err != nil {
		return err
	}
	if actor != 0 {
		s.store.AppendAudit(ctx, actor, "lifecycle.restart", fmt.Sprintf("project:%d", projectID), "")
	}
	return nil
}

// KillForRAM tree-kills a runtime that exceeded its plan RAM cap and leaves
// a watchdog notice in the log. The waiter observes the exit normally, so
// backoff widens for OOM-looping projects.
func (s *Supervisor) KillForRAM(projectID int64, rss, limit int64) {
	s.mu.Lock()
	rt, ok := s.registry[projectID]
	s.mu.Unlock()
	if !ok {
		return
	}

	notice := watchdogLine(fmt.Sprintf("RAM limit exceeded: %d MiB used, %d MiB allowed",
		rss/(1024*1024), limit/(1024*1024)))
	rt.ring.Push(notice)
	if err := appendLogLine(rt.logPath, notice); err != nil {
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("Failed to append watchdog notice")
	}

	rt.stopReason.Store(types.RunReasonWatchdog)
	metrics.WatchdogKillsTotal.Inc()
	s.events.Publish(&events.Event{
		Type:    events.EventWatchdogKilled,
		UserID:  rt.OwnerID,
		Message: fmt.Sprintf("%s was killed: RAM limit exceeded", rt.Name),
	})
	TreeKill(rt.PID)
}

// StopAllFor stops every live project of one user. Used by admin.ban.
func (s *Supervisor) StopAllFor(ctx context.Context, actor, ownerID int64, reason types.RunReason) int {
	stopped := 0
	for _, info := range s.RunningFor(ownerID) {
		if err := s.Stop(ctx, actor, info.ProjectID, reason); err == nil {
			stopped++
		}
	}
	return stopped
}

// LogTail returns the newest lines from a live runtime's in-memory ring, or
// false when the project is not live
func (s *Supervisor) LogTail(projectID int64, n int) ([]string, bool) {
	s.mu.Lock()
	rt, ok := s.registry[projectID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return rt.Tail(n), true
}

// Tail is exported on Runtime for the supervisor's own use
func (rt *Runtime) Tail(n int) []string {
	return rt.ring.Tail(n)
}

// AutostartAll starts every autostart-flagged project whose owner is not
// banned, pacing launches so sandbox provisioning does not stampede. Called
// once at service boot.
func (s *Supervisor) AutostartAll(ctx context.Context) {
	projects, err := s.store.ListAutostart(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list autostart projects")
		return
	}

	for _, p := range projects {
		if banned, err := s.store.IsBanned(ctx, p.OwnerID); err != nil || banned {
			continue
		}
		if s.IsLive(p.ID) {
			continue
		}
		if err := s.Start(ctx, 0, p.ID); err != nil {
			s.logger.Warn().Err(err).Int64("project_id", p.ID).Msg("Autostart failed")
		}

		select {
		case <-time.After(autostartPacing):
		case <-s.shutdownCh:
			return
		}
	}
}

// Shutdown cancels pending crash restarts. Children keep running: once
// spawned they are externally owned. Pass stopChildren to stop each live
// project first.
func (s *Supervisor) Shutdown(ctx context.Context, stopChildren bool) {
	s.shutdown.Do(func() { close(s.shutdownCh) })

	if !stopChildren {
		return
	}
	for _, info := range s.ListRunning() {
		if err := s.Stop(ctx, 0, info.ProjectID, types.RunReasonShutdown); err != nil {
			s.logger.Warn().Err(err).Int64("project_id", info.ProjectID).Msg("Shutdown stop failed")
		}
	}
}

// removeIfCurrent drops rt from the registry if it is still the registered
// runtime for its project
func (s *Supervisor) removeIfCurrent(rt *Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry[rt.ProjectID] == rt {
		delete(s.registry, rt.ProjectID)
	}
}
