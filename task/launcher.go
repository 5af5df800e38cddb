package task

import (
	"context"

	"mediadl/process"
)

type execLauncher struct{}

// NewLauncher returns a Launcher that runs real operating system processes.
func NewLauncher() Launcher {
	return execLauncher{}
}

func (execLauncher) Start(ctx context.Context, spec process.Spec) (Process, error) {
	p, err := process.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	return p, nil
}
