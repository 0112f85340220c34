package repository

import (
	"context"
	"io"
)

// Toolchain runs the external compiler inside a prepared workspace.
type Toolchain interface {
	Compile(ctx context.Context, workDir string, output io.Writer) error
	Name() string
}
