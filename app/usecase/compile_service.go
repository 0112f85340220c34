package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"contractforge/internal/domain/entity"
	"contractforge/internal/domain/repository"
	"contractforge/internal/infrastructure/compiler"
	"contractforge/internal/infrastructure/metrics"
	"contractforge/internal/infrastructure/store/filesystem"
	"contractforge/internal/infrastructure/validator"
)

const outputLimit = 16 * 1024

// Unlinked library references appear in artifact bytecode as __$<34 hex>$__
// until the deployer links them; they occupy the width of an address.
var linkPlaceholder = regexp.MustCompile(`__\$[0-9a-fA-F]{34}\$__`)

var placeholderFill = strings.Repeat("0", 40)

// CompileError carries the stage that failed and the tail of the compiler
// output for diagnostics.
type CompileError struct {
	Stage  string
	Output string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Details is the free-text message returned to clients.
func (e *CompileError) Details() string {
	if e.Output == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Output
}

type CompileUsecase interface {
	Compile(ctx context.Context, req entity.CompileRequest, onLine func(string)) (*entity.CompileResult, error)
}

var _ CompileUsecase = (*CompileService)(nil)

type CompileService struct {
	workspaces *filesystem.WorkspaceRepository
	toolchain  repository.Toolchain
	analyzer   validator.Analyzer
	logger     *slog.Logger
}

func NewCompileService(
	workspaces *filesystem.WorkspaceRepository,
	toolchain repository.Toolchain,
	analyzer validator.Analyzer,
	logger *slog.Logger,
) *CompileService {
	return &CompileService{
		workspaces: workspaces,
		toolchain:  toolchain,
		analyzer:   analyzer,
		logger:     logger,
	}
}

// Compile runs one isolated compile attempt:
// 1) static checks
// 2) write source into a fresh workspace
// 3) run the toolchain
// 4) read the artifact and extract abi + bytecode
// The workspace is removed afterwards whatever the outcome.
func (s *CompileService) Compile(ctx context.Context, req entity.CompileRequest, onLine func(string)) (*entity.CompileResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	name := req.ContractName
	start := time.Now()

	// 1) Static checks
	if s.analyzer != nil {
		res := s.analyzer.Analyze(req.ContractCode, name)
		for _, w := range res.Warnings {
			s.logger.Warn("source warning", "contract", name, "line", w.Line, "msg", w.Message)
		}
		if !res.Passed {
			metrics.IncError("compile", "static_check")
			return nil, &CompileError{Stage: "static check", Output: res.Report(), Err: fmt.Errorf("source rejected")}
		}
	}

	// 2) Workspace
	ws, err := s.workspaces.Create(ctx, name, req.ContractCode)
	if err != nil {
		metrics.IncError("compile", "workspace")
		return nil, &CompileError{Stage: "prepare workspace", Err: err}
	}
	defer func() {
		if err := s.workspaces.Remove(ws); err != nil {
			metrics.IncWorkspaceCleanupFailure()
			s.logger.Warn("workspace cleanup failed", "dir", ws.Dir, "err", err)
		}
	}()

	s.logger.Info("compiling contract", "contract", name, "workspace", ws.ID)

	// 3) Toolchain
	output := compiler.NewOutput(outputLimit, onLine)
	err = s.toolchain.Compile(ctx, ws.Dir, output)
	output.Flush()
	if err != nil {
		s.logger.Error("compilation failed", "contract", name, "workspace", ws.ID, "err", err)
		return nil, &CompileError{Stage: "compile", Output: output.String(), Err: err}
	}

	// 4) Artifact
	artifact, err := s.workspaces.ReadArtifact(ctx, ws)
	if err != nil {
		metrics.IncError("compile", "artifact")
		s.logger.Error("artifact read failed", "contract", name, "workspace", ws.ID, "err", err)
		return nil, &CompileError{Stage: "read artifact", Output: output.String(), Err: err}
	}

	result, err := toResult(artifact, name)
	if err != nil {
		metrics.IncError("compile", "artifact_format")
		return nil, &CompileError{Stage: "read artifact", Err: err}
	}

	s.logger.Info("contract compiled", "contract", name, "workspace", ws.ID,
		"bytecode_len", len(result.Bytecode), "duration", time.Since(start))
	return result, nil
}

func toResult(artifact *entity.Artifact, name string) (*entity.CompileResult, error) {
	if len(artifact.ABI) == 0 || bytes.Equal(bytes.TrimSpace(artifact.ABI), []byte("null")) {
		return nil, fmt.Errorf("artifact for %s has no abi", name)
	}
	if _, err := abi.JSON(bytes.NewReader(artifact.ABI)); err != nil {
		return nil, fmt.Errorf("artifact for %s has an invalid abi: %w", name, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, artifact.ABI); err != nil {
		return nil, fmt.Errorf("compact abi: %w", err)
	}

	bytecode := strings.TrimSpace(artifact.Bytecode)
	if !strings.HasPrefix(bytecode, "0x") {
		bytecode = "0x" + bytecode
	}
	if _, err := hexutil.Decode(linkPlaceholder.ReplaceAllString(bytecode, placeholderFill)); err != nil {
		return nil, fmt.Errorf("artifact for %s has invalid bytecode: %w", name, err)
	}

	return &entity.CompileResult{
		ABI:          json.RawMessage(compact.Bytes()),
		Bytecode:     bytecode,
		ContractName: name,
	}, nil
}
