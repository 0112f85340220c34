package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"contractforge/internal/domain/repository"
)

// DefaultCommand forces a full rebuild so stale cache never hides errors.
var DefaultCommand = []string{"npx", "hardhat", "compile", "--force"}

// CommandToolchain runs an external compiler command with the workspace as
// its working directory.
type CommandToolchain struct {
	name    string
	command []string
	env     []string
}

var _ repository.Toolchain = (*CommandToolchain)(nil)

func NewCommandToolchain(name string, command []string, env ...string) (*CommandToolchain, error) {
	if len(command) == 0 {
		return nil, errors.New("compiler command is empty")
	}
	if name == "" {
		name = command[0]
	}
	return &CommandToolchain{
		name:    name,
		command: append([]string(nil), command...),
		env:     env,
	}, nil
}

func (t *CommandToolchain) Name() string {
	return t.name
}

func (t *CommandToolchain) Compile(ctx context.Context, workDir string, output io.Writer) error {
	cmd := exec.CommandContext(ctx, t.command[0], t.command[1:]...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), t.env...)
	cmd.Stdout = output
	cmd.Stderr = output
	// npx starts node as a separate process; run the whole tree in its own
	// process group so cancellation reaches every descendant.
	setProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	// Descendants that outlive the command would keep writing into a
	// workspace that is about to be removed.
	killProcessGroup(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s canceled or timed out: %w", t.name, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w", t.name, err)
	}
	return nil
}
