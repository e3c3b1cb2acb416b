package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is a private scratch directory. Close removes it and everything
// in it; callers defer Close right after acquiring one.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// NewWorkspace creates a fresh directory under root.
func NewWorkspace(root, prefix string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root %s: %w", root, err)
	}
	dir, err := os.MkdirTemp(root, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Path returns name joined onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Close removes the workspace. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
	})
	return w.err
}
