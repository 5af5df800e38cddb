// Package process supervises a single external tool process: it streams the
// tool's stdout and stderr line by line while it runs, reports the exit code,
// and can stop the process together with every helper process it spawned.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/alessio/shellescape"
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of tool output.
type Line struct {
	Source Stream
	Text   string
}

// Spec describes the process to launch. Grace is the time allowed between
// the graceful terminate and the forced kill when the start context ends.
type Spec struct {
	Bin   string
	Args  []string
	Dir   string
	Env   []string
	Grace time.Duration
}

// maxLineSize bounds a single output line. Metadata dumps arrive as one line.
var maxLineSize = 16 * 1024 * 1024

// Process is a running (or finished) external process.
type Process struct {
	cmd    *exec.Cmd
	logger *slog.Logger

	lines   chan Line
	readers sync.WaitGroup
	outputs []*os.File

	exited   chan struct{}
	exitCode int
	waitErr  error

	drained  chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start launches spec and begins streaming its output. The process is placed
// in its own process group so that Stop can reach its descendants. When ctx
// is done before the process exits, the process tree is stopped with
// spec.Grace.
func Start(ctx context.Context, spec Spec) (*Process, error) {
	if spec.Bin == "" {
		return nil, errors.New("process: empty binary")
	}

	cmd := exec.Command(spec.Bin, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setupProcessGroup(cmd)

	// Explicit pipes instead of StdoutPipe: Wait must not close the read ends,
	// because the exit of the tool and EOF on its output are observed
	// independently (a helper child may hold the pipe after the parent exits).
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	logger := slog.Default()
	logger.Debug("Starting process", "command", shellescape.QuoteCommand(append([]string{spec.Bin}, spec.Args...)))

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, fmt.Errorf("process: start %s: %w", spec.Bin, err)
	}
	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()

	p := &Process{
		cmd:     cmd,
		logger:  logger.With("pid", cmd.Process.Pid),
		lines:   make(chan Line, 64),
		outputs: []*os.File{outR, errR},
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
	}

	p.readers.Add(2)
	go p.read(outR, Stdout)
	go p.read(errR, Stderr)
	go func() {
		p.readers.Wait()
		close(p.lines)
		close(p.drained)
	}()
	go p.wait()
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Stop(spec.Grace)
		case <-p.exited:
		}
	}()

	return p, nil
}

func (p *Process) read(r io.Reader, src Stream) {
	defer p.readers.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, min(64*1024, maxLineSize)), maxLineSize)
	scanner.Split(ScanLines)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		p.lines <- Line{Source: src, Text: text}
	}
	if err := scanner.Err(); errors.Is(err, bufio.ErrTooLong) {
		// The child must not block on a full pipe.
		p.logger.Warn("Output line too long, discarding the rest of the stream", "stream", src.String())
		_, _ = io.Copy(io.Discard, r)
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exitCode = p.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.waitErr = err
	}
	close(p.exited)
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Lines streams output lines until both stdout and stderr are closed. The
// caller must keep receiving until the channel is closed.
func (p *Process) Lines() <-chan Line {
	return p.lines
}

// Exited is closed once the top-level process has exited.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the process exits and returns its exit code. A process
// killed by a signal reports -1. err is non-nil only when waiting itself
// failed.
func (p *Process) Wait() (int, error) {
	<-p.exited
	return p.exitCode, p.waitErr
}

// Stop terminates the process tree. On POSIX the group first receives a
// graceful terminate and is given grace to exit before it and every
// descendant are killed. On Windows the whole tree is force-killed at once.
// If output is still open afterwards the read ends are closed so that Lines
// terminates. Stop is idempotent.
func (p *Process) Stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(grace)
	})
	return p.stopErr
}

func (p *Process) stop(grace time.Duration) error {
	// Descendants are collected up front: once the parent is gone they are
	// reparented and can no longer be found from its pid.
	tree := descendants(p.PID())

	var err error
	select {
	case <-p.exited:
	default:
		p.logger.Info("Terminating process tree", "descendants", len(tree))
		err = terminateTree(p, tree, grace)
	}
	killAll(tree)
	sweepGroup(p)

	select {
	case <-p.drained:
	case <-time.After(drainTimeout(grace)):
		p.logger.Warn("Output still open after stop, closing pipes")
		for _, f := range p.outputs {
			f.Close()
		}
	}
	return err
}

func drainTimeout(grace time.Duration) time.Duration {
	if grace < time.Second {
		return time.Second
	}
	return grace
}
