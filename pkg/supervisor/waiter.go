package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/metrics"
)

// maxLogLine bounds a single child output line
const maxLogLine = 1024 * 1024

// pump drains the child's combined output into the in-memory ring and the
// append-only log file, in child-emission order. It exits on EOF, which the
// child's death guarantees. Errors are recorded in the log itself and
// swallowed; the pump never takes the supervisor down.
func (s *Supervisor) pump(rt *Runtime) {
	defer close(rt.pumpDone)
	defer rt.output.Close()

	logFile, err := os.OpenFile(rt.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", rt.ProjectID).Msg("Log pump cannot open log file")
		logFile = nil
	}
	if logFile != nil {
		defer logFile.Close()
	}

	scanner := bufio.NewScanner(rt.output)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)

	for scanner.Scan() {
		line := scanner.Text()
		rt.ring.Push(line)
		metrics.LogBytesTotal.Add(float64(len(line) + 1))

		if logFile != nil {
			if _, err := logFile.WriteString(line + "\n"); err != nil {
				rt.ring.Push(supervisorLine(fmt.Sprintf("log write error: %v", err)))
				logFile.Close()
				logFile = nil
			}
		}
	}
	// Read errors end the pump the same way EOF does
}

// wait is the waiter task: it awaits the child's exit, performs postmortem
// bookkeeping, and drives the crash-restart loop when the exit was
// unattended.
func (s *Supervisor) wait(rt *Runtime) {
	err := rt.cmd.Wait()
	exitCode := exitCodeOf(rt.cmd, err)

	// Give the pump up to 5 s to finish draining before the EXIT trailer is
	// written, so log order matches child emission order when it drains in
	// time
	select {
	case <-rt.pumpDone:
	case <-time.After(5 * time.Second):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.StopRun(ctx, rt.RunID, exitCode, rt.reason()); err != nil {
		s.logger.Error().Err(err).Int64("run_id", rt.RunID).Msg("Failed to close run row")
	}
	if err := appendLogLine(rt.logPath, exitTrailer(exitCode, time.Now())); err != nil {
		s.logger.Error().Err(err).Int64("project_id", rt.ProjectID).Msg("Failed to append exit trailer")
	}

	s.removeIfCurrent(rt)
	close(rt.done)

	s.logger.Info().
		Int64("project_id", rt.ProjectID).
		Int("exit_code", exitCode).
		Str("reason", string(rt.reason())).
		Msg("Project exited")

	if rt.stopping.Load() {
		return
	}

	// Unattended exit: consult the autostart flag and schedule a restart
	project, err2 := s.store.GetProject(ctx, rt.ProjectID)
	if err2 != nil || !project.Autostart {
		return
	}

	delay, next := backoffStep(rt.backoff, s.cfg.RestartMaxDelay)

	metrics.CrashRestartsTotal.Inc()
	s.events.Publish(&events.Event{
		Type:    events.EventProjectCrashed,
		UserID:  rt.OwnerID,
		Message: fmt.Sprintf("%s exited with code %d, restarting in %s", rt.Name, exitCode, delay),
		Crash: &events.CrashNotice{
			ProjectID:    rt.ProjectID,
			ProjectName:  rt.Name,
			OwnerID:      rt.OwnerID,
			ExitCode:     exitCode,
			LogTail:      rt.ring.Tail(crashTailLines),
			RestartDelay: delay,
		},
	})

	select {
	case <-time.After(delay):
	case <-s.shutdownCh:
		return
	}

	// Admission failures here are terminal: the project stays stopped
	// until explicitly restarted
	if err := s.start(context.Background(), 0, rt.ProjectID, next); err != nil {
		s.logger.Debug().Err(err).Int64("project_id", rt.ProjectID).Msg("Crash restart rejected")
	}
}

// backoffStep clamps the current backoff into the applied delay and doubles
// it for the next unattended restart, capped at max
func backoffStep(current, max time.Duration) (delay, next time.Duration) {
	delay = current
	if delay > max {
		delay = max
	}
	next = delay * 2
	if next > max {
		next = max
	}
	return delay, next
}

// exitCodeOf extracts the child's exit code; -1 when unknown
func exitCodeOf(cmd *exec.Cmd, _ error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}
