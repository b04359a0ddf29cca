// Package localproc manages locally-spawned background processes (log
// follows, dev servers) so they are always terminated when the orchestrator
// exits, on success, failure, or interrupt.
//
// Only local children are ever touched; cancellation never reaches remote
// nodes.
package localproc

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Group tracks spawned processes for scoped shutdown.
type Group struct {
	mu    sync.Mutex
	procs []*exec.Cmd

	// grace is how long a process gets between SIGTERM and SIGKILL.
	grace time.Duration
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{grace: 5 * time.Second}
}

// Start launches a command with output wired to the given writers and
// registers it for shutdown. The returned wait function blocks until the
// process exits.
func (g *Group) Start(name string, args []string, stdout, stderr io.Writer) (wait func() error, err error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Own process group so shutdown reaches any children the command forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	g.mu.Lock()
	g.procs = append(g.procs, cmd)
	g.mu.Unlock()

	return cmd.Wait, nil
}

// Shutdown terminates every registered process: SIGTERM first, SIGKILL for
// anything still alive after the grace period. Safe to call more than once
// and with processes that already exited.
func (g *Group) Shutdown() {
	g.mu.Lock()
	procs := g.procs
	g.procs = nil
	g.mu.Unlock()

	for _, cmd := range procs {
		if cmd.Process == nil {
			continue
		}
		// Negative pid signals the whole process group.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(g.grace)
	for time.Now().Before(deadline) {
		if allGone(procs) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	for _, cmd := range procs {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}
}

// allGone checks process liveness with signal 0; Wait stays with the
// caller that started the process.
func allGone(procs []*exec.Cmd) bool {
	for _, cmd := range procs {
		if cmd.Process == nil {
			continue
		}
		if err := syscall.Kill(-cmd.Process.Pid, 0); err == nil {
			return false
		}
	}
	return true
}
