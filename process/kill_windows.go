//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// terminateTree force-kills the whole tree at once. A terminate sent only to
// the parent leaves its children running on Windows.
func terminateTree(p *Process, tree []*gops.Process, grace time.Duration) error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.PID()))
	kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := kill.CombinedOutput(); err != nil {
		p.logger.Warn("taskkill failed, falling back to direct kill", "error", err, "output", string(out))
		killAll(tree)
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.exited:
	case <-time.After(grace):
		p.logger.Warn("Process still running after taskkill")
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	return nil
}

func sweepGroup(*Process) {}
