package extractor

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Flags that would move or rename output behind the service's back, or run
// arbitrary commands.
var forbiddenFlags = []string{
	"-o", "--output", "-P", "--paths",
	"--exec", "--exec-before-download",
	"-a", "--batch-file", "--config-location", "--config-locations",
}

// SplitExtraArgs splits an operator-supplied argument string into a slice of
// arguments without involving a shell.
func SplitExtraArgs(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// ValidateExtraArgs rejects arguments that control output location, execute
// commands, or carry shell metacharacters.
func ValidateExtraArgs(args []string) error {
	for _, arg := range args {
		name, _, _ := strings.Cut(arg, "=")
		for _, f := range forbiddenFlags {
			if name == f {
				return fmt.Errorf("argument not allowed: %s", arg)
			}
		}
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}

// ParseExtraArgs splits and validates command in one step.
func ParseExtraArgs(command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, nil
	}
	args, err := SplitExtraArgs(command)
	if err != nil {
		return nil, err
	}
	if err := ValidateExtraArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}
