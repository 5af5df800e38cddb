//go:build unix

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree sends SIGTERM to the process group and to descendants that
// left it, waits up to grace for the top process, then SIGKILLs the group.
func terminateTree(p *Process, tree []*gops.Process, grace time.Duration) error {
	pgid := p.PID()
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("process: terminate group %d: %w", pgid, err)
	}
	terminateAll(tree)

	select {
	case <-p.exited:
		return nil
	case <-time.After(grace):
	}

	p.logger.Warn("Process did not exit within grace period, killing", "grace", grace)
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("process: kill group %d: %w", pgid, err)
	}
	<-p.exited
	return nil
}

// sweepGroup kills whatever is left in the process group.
func sweepGroup(p *Process) {
	_ = syscall.Kill(-p.PID(), syscall.SIGKILL)
}
