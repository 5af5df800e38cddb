package process

import (
	"bytes"
	"log/slog"

	gops "github.com/shirou/gopsutil/v3/process"
)

// ScanLines is a bufio.SplitFunc that ends a line at either '\n' or '\r'.
// Download tools redraw their progress line with a bare carriage return, so a
// plain newline split would hold every update until the stage finishes.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// descendants returns every live process below pid, children first.
func descendants(pid int) []*gops.Process {
	procs, err := gops.Processes()
	if err != nil {
		slog.Warn("Failed to list processes", "error", err)
		return nil
	}

	children := make(map[int32][]*gops.Process)
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], proc)
	}

	var out []*gops.Process
	queue := []int32{int32(pid)}
	seen := map[int32]bool{int32(pid): true}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			if seen[child.Pid] {
				continue
			}
			seen[child.Pid] = true
			out = append(out, child)
			queue = append(queue, child.Pid)
		}
	}
	return out
}

// killAll force-kills every process in tree that is still running.
func killAll(tree []*gops.Process) {
	for _, proc := range tree {
		running, err := proc.IsRunning()
		if err != nil || !running {
			continue
		}
		if err := proc.Kill(); err != nil {
			slog.Debug("Failed to kill descendant", "pid", proc.Pid, "error", err)
		}
	}
}

// terminateAll asks every process in tree to exit.
func terminateAll(tree []*gops.Process) {
	for _, proc := range tree {
		_ = proc.Terminate()
	}
}
