package supervisor

import (
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// Runtime is the in-memory record of one live child process plus its pump
// and waiter tasks. The supervisor owns all Runtime instances; they are
// never handed out by reference.
type Runtime struct {
	ProjectID  int64
	OwnerID    int64
	Name       string
	Entrypoint string
	RunID      int64
	PID        int
	StartedAt  time.Time

	cmd     *exec.Cmd
	output  *os.File // read side of the child's combined output
	logPath string
	ring    *Ring

	// backoff is the delay this runtime's waiter will apply if the child
	// exits unattended; set at spawn, doubled for the successor
	backoff time.Duration

	// stopping is true only when a deliberate stop was initiated
	stopping   atomic.Bool
	stopReason atomic.Value // types.RunReason

	pumpDone chan struct{} // closed when the pump has drained the output
	done     chan struct{} // closed when the waiter has finished postmortem
}

func (rt *Runtime) markStopping(reason types.RunReason) {
	rt.stopReason.Store(reason)
	rt.stopping.Store(true)
}

func (rt *Runtime) reason() types.RunReason {
	if r, ok := rt.stopReason.Load().(types.RunReason); ok {
		return r
	}
	return types.RunReasonExit
}

// Info is a point-in-time snapshot of a Runtime, safe to hand to callers
type Info struct {
	ProjectID  int64
	OwnerID    int64
	Name       string
	Entrypoint string
	RunID      int64
	PID        int
	StartedAt  time.Time
}

func (rt *Runtime) info() Info {
	return Info{
		ProjectID:  rt.ProjectID,
		OwnerID:    rt.OwnerID,
		Name:       rt.Name,
		Entrypoint: rt.Entrypoint,
		RunID:      rt.RunID,
		PID:        rt.PID,
		StartedAt:  rt.StartedAt,
	}
}
