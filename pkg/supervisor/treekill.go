package supervisor

import (
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// descendants returns the full descendant set of pid, depth first. Children
// that disappear mid-walk are skipped.
func descendants(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}

	var out []*process.Process
	var walk func(p *process.Process)
	walk = func(p *process.Process) {
		children, err := p.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			walk(c)
			out = append(out, c)
		}
	}
	walk(root)
	return out
}

// TreeKill terminates an entire process tree: graceful termination for every
// descendant and the root, a bounded wait, then force-kill for survivors.
// The process group gets a final SIGKILL to catch anything the walk missed.
func TreeKill(pid int) {
	if pid <= 0 {
		return
	}
	procs := descendants(pid)
	if root, err := process.NewProcess(int32(pid)); err == nil {
		procs = append(procs, root)
	}

	for _, p := range procs {
		_ = p.Terminate()
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		alive := false
		for _, p := range procs {
			if running, _ := p.IsRunning(); running {
				alive = true
				break
			}
		}
		if !alive {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	for _, p := range procs {
		if running, _ := p.IsRunning(); running {
			_ = p.Kill()
		}
	}

	// The child was spawned in its own process group; a group kill sweeps
	// up anything that forked during the walk
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// TreeRSS returns the resident set size of a process tree in bytes: the root
// plus every enumerable descendant. Falls back to the root alone when the
// walk fails.
func TreeRSS(pid int) (int64, error) {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}

	mem, err := root.MemoryInfo()
	if err != nil {
		return 0, err
	}
	total := int64(mem.RSS)

	for _, p := range descendants(pid) {
		if m, err := p.MemoryInfo(); err == nil {
			total += int64(m.RSS)
		}
	}
	return total, nil
}
