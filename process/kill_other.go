//go:build !unix && !windows

package process

import (
	"os/exec"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

func setupProcessGroup(*exec.Cmd) {}

func terminateTree(p *Process, tree []*gops.Process, _ time.Duration) error {
	killAll(tree)
	err := p.cmd.Process.Kill()
	<-p.exited
	return err
}

func sweepGroup(*Process) {}
