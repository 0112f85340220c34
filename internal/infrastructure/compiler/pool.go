package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"contractforge/internal/domain/repository"
	"contractforge/internal/infrastructure/metrics"
)

// Pool bounds how many toolchain processes run at once and applies a
// per-run timeout.
type Pool struct {
	toolchain repository.Toolchain
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *slog.Logger
}

func NewPool(toolchain repository.Toolchain, workers int, timeout time.Duration, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Pool{
		toolchain: toolchain,
		sem:       semaphore.NewWeighted(int64(workers)),
		timeout:   timeout,
		logger:    logger,
	}
}

func (p *Pool) Name() string {
	return p.toolchain.Name()
}

// Compile waits for a free slot, then runs the toolchain in workDir.
func (p *Pool) Compile(ctx context.Context, workDir string, output io.Writer) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for compiler slot: %w", err)
	}
	metrics.IncCompileSlots()
	defer func() {
		p.sem.Release(1)
		metrics.DecCompileSlots()
	}()

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.toolchain.Compile(runCtx, workDir, output)
	duration := time.Since(start)
	metrics.ObserveCompileDuration(p.toolchain.Name(), duration)

	switch {
	case err == nil:
		metrics.IncCompileRun(p.toolchain.Name(), "pass")
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		metrics.IncCompileRun(p.toolchain.Name(), "timeout")
		p.logger.Warn("compiler timed out", "dir", workDir, "timeout", p.timeout)
		return fmt.Errorf("compiler timed out after %s: %w", p.timeout, err)
	default:
		metrics.IncCompileRun(p.toolchain.Name(), "fail")
	}

	p.logger.Debug("compiler finished", "dir", workDir, "duration", duration, "err", err)
	return err
}
