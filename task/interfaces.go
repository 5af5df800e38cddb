package task

import (
	"context"
	"time"

	"mediadl/process"
)

// Process is a running external tool invocation.
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Process interface {
	PID() int
	Lines() <-chan process.Line
	Exited() <-chan struct{}
	Wait() (int, error)
	Stop(grace time.Duration) error
}

// Launcher starts external tool processes. When ctx ends before the process
// exits, the process tree is stopped.
type Launcher interface {
	Start(ctx context.Context, spec process.Spec) (Process, error)
}
