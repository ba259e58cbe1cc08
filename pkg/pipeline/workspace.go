package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/pyvalidate/pkg/integrations"
)

// Workspace is the scratch directory owned by one package run. It holds the
// downloaded file, the extracted/ tree and the venv/ environment.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a uniquely named directory "pyvalidate-<pkg>-*" under
// parent (os.TempDir() when empty).
func NewWorkspace(parent, pkg string) (*Workspace, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, "pyvalidate-"+integrations.NormalizePkgName(pkg)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Extracted is the directory the artifact is unpacked into.
func (w *Workspace) Extracted() string { return filepath.Join(w.Dir, "extracted") }

// Venv is the root of the isolated environment.
func (w *Workspace) Venv() string { return filepath.Join(w.Dir, "venv") }

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error { return os.RemoveAll(w.Dir) }
