package task

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"mediadl/process"
)

const stderrTailLines = 10

// tail keeps the last n lines written to it.
type tail struct {
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) snapshot() []string {
	return append([]string(nil), t.lines...)
}

// stream feeds every output line of p to onLine until output ends. If ctx
// ends first the process tree is stopped. Output held open by a leftover
// child after p itself exited is cut off after the kill grace. Lines keep
// being consumed while a stop is in progress.
func (m *Manager) stream(ctx context.Context, p Process, onLine func(process.Line)) (int, error) {
	lines := p.Lines()
	exited := p.Exited()
	done := ctx.Done()
	var linger <-chan time.Time

	var stopped chan struct{}
	stop := func(msg string) {
		if stopped != nil {
			return
		}
		m.logger.Info(msg, "pid", p.PID())
		stopped = make(chan struct{})
		go func() {
			defer close(stopped)
			if err := p.Stop(m.cfg.KillGrace); err != nil {
				m.logger.Error("Failed to stop process", "pid", p.PID(), "error", err)
			}
		}()
	}

	for lines != nil {
		select {
		case <-done:
			done = nil
			stop("Stopping process tree")
		case <-exited:
			exited = nil
			linger = time.After(m.cfg.KillGrace)
		case <-linger:
			linger = nil
			stop("Output still open after exit, stopping leftover children")
		case l, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			onLine(l)
		}
	}

	code, err := p.Wait()
	if stopped != nil {
		<-stopped
	}
	return code, err
}

// runTool runs one tool invocation for j, reporting each line to onLine.
// It returns errCancelled when the job was cancelled, a *ToolError on a
// non-zero exit, and nil on success.
func (m *Manager) runTool(j *Job, bin string, args []string, onLine func(process.Line)) error {
	if j.isCancelled() {
		return errCancelled
	}
	p, err := m.launcher.Start(j.ctx, process.Spec{Bin: bin, Args: args, Grace: m.cfg.KillGrace})
	if err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(bin), err)
	}
	j.setProcess(p)
	defer j.setProcess(nil)

	stderr := newTail(stderrTailLines)
	code, err := m.stream(j.ctx, p, func(l process.Line) {
		if l.Source == process.Stderr {
			stderr.add(l.Text)
			m.logger.Debug("Tool stderr", "url", j.URL, "line", l.Text)
		}
		onLine(l)
	})
	if j.isCancelled() {
		return errCancelled
	}
	if err != nil {
		return fmt.Errorf("wait for %s: %w", filepath.Base(bin), err)
	}
	if code != 0 {
		return &ToolError{Tool: bin, Code: code, Stderr: stderr.snapshot()}
	}
	return nil
}

// capture runs a short-lived tool invocation outside any job and returns its
// standard output lines.
func (m *Manager) capture(ctx context.Context, bin string, args []string) ([]string, error) {
	p, err := m.launcher.Start(ctx, process.Spec{Bin: bin, Args: args, Grace: m.cfg.KillGrace})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", filepath.Base(bin), err)
	}

	var stdout []string
	stderr := newTail(stderrTailLines)
	code, err := m.stream(ctx, p, func(l process.Line) {
		if l.Source == process.Stderr {
			stderr.add(l.Text)
			return
		}
		stdout = append(stdout, l.Text)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout, ctxErr
	}
	if err != nil {
		return stdout, fmt.Errorf("wait for %s: %w", filepath.Base(bin), err)
	}
	if code != 0 {
		return stdout, &ToolError{Tool: bin, Code: code, Stderr: stderr.snapshot()}
	}
	return stdout, nil
}
