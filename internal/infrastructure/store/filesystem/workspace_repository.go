package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"contractforge/internal/domain/entity"
)

const (
	sourcesDir   = "contracts"
	artifactsDir = "artifacts"
	cacheDir     = "cache"
)

// Project files copied into every workspace so the toolchain finds its
// configuration. node_modules is linked, not copied.
var projectFiles = []string{
	"hardhat.config.js",
	"hardhat.config.cjs",
	"hardhat.config.ts",
	"package.json",
	"tsconfig.json",
}

// Workspace is a private directory holding one compile attempt.
type Workspace struct {
	ID           string
	Dir          string
	SourcePath   string
	ContractName string
}

func (w *Workspace) ArtifactPath() string {
	return filepath.Join(w.Dir, artifactsDir, sourcesDir, w.ContractName+".sol", w.ContractName+".json")
}

func (w *Workspace) CachePath() string {
	return filepath.Join(w.Dir, cacheDir)
}

type WorkspaceRepository struct {
	basePath   string
	projectDir string
}

func (r *WorkspaceRepository) GetBasePath() string {
	return r.basePath
}

// NewWorkspaceRepository prepares basePath for workspaces. projectDir, when
// set, is the toolchain project whose configuration and node_modules every
// workspace reuses.
func NewWorkspaceRepository(basePath, projectDir string) (*WorkspaceRepository, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	if projectDir != "" {
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return nil, fmt.Errorf("resolve project dir %s: %w", projectDir, err)
		}
		projectDir = abs
	}

	return &WorkspaceRepository{
		basePath:   basePath,
		projectDir: projectDir,
	}, nil
}

// Create makes a uniquely named workspace and writes source to
// contracts/<contractName>.sol inside it.
func (r *WorkspaceRepository) Create(ctx context.Context, contractName, source string) (*Workspace, error) {
	if !entity.ValidContractName(contractName) {
		return nil, entity.ErrInvalidContractName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ws := &Workspace{
		ID:           id,
		Dir:          filepath.Join(r.basePath, contractName+"-"+id),
		ContractName: contractName,
	}
	ws.SourcePath = filepath.Join(ws.Dir, sourcesDir, contractName+".sol")

	if err := os.MkdirAll(filepath.Dir(ws.SourcePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if err := r.linkProject(ws.Dir); err != nil {
		_ = os.RemoveAll(ws.Dir)
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	if err := os.WriteFile(ws.SourcePath, []byte(source), 0o644); err != nil {
		_ = os.RemoveAll(ws.Dir)
		return nil, fmt.Errorf("failed to write source %s: %w", ws.SourcePath, err)
	}

	return ws, nil
}

func (r *WorkspaceRepository) linkProject(dir string) error {
	if r.projectDir == "" {
		return nil
	}
	for _, name := range projectFiles {
		src := filepath.Join(r.projectDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	modules := filepath.Join(r.projectDir, "node_modules")
	if _, err := os.Stat(modules); err == nil {
		if err := os.Symlink(modules, filepath.Join(dir, "node_modules")); err != nil {
			return fmt.Errorf("link node_modules: %w", err)
		}
	}
	return nil
}

// ReadArtifact loads the build artifact of ws.ContractName. The conventional
// path is tried first; otherwise the artifact tree is searched for an
// artifact reporting the same contract name.
func (r *WorkspaceRepository) ReadArtifact(ctx context.Context, ws *Workspace) (*entity.Artifact, error) {
	artifact, err := readArtifactFile(ws.ArtifactPath())
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	root := filepath.Join(ws.Dir, artifactsDir)
	var found *entity.Artifact
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}
		a, err := readArtifactFile(path)
		if err != nil {
			return nil
		}
		if a.ContractName == ws.ContractName {
			found = a
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to walk artifacts: %w", walkErr)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrArtifactNotFound, ws.ArtifactPath())
	}
	return found, nil
}

func readArtifactFile(path string) (*entity.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact entity.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	return &artifact, nil
}

// Remove deletes the workspace together with its source, artifacts and cache.
func (r *WorkspaceRepository) Remove(ws *Workspace) error {
	if ws == nil || ws.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("failed to delete workspace %s: %w", ws.Dir, err)
	}
	return nil
}

// List returns the ids of workspaces still present under the base path.
func (r *WorkspaceRepository) List() ([]string, error) {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspaces: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
