package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
)

// Rewriter serializes edit batches against one ledger file and applies
// them with an atomic replace, so a crash mid-write cannot leave a
// half-written ledger behind.
type Rewriter struct {
	path  string
	rules *classify.Rules
	mu    sync.Mutex
}

// NewRewriter creates a Rewriter for the ledger file at path.
func NewRewriter(path string, rules *classify.Rules) *Rewriter {
	return &Rewriter{path: path, rules: rules}
}

// Path returns the ledger file the rewriter writes to.
func (r *Rewriter) Path() string {
	return r.path
}

// Rewrite applies a batch of edits to the ledger file. Refused edits come
// back as EditErrors with a nil error and the file untouched; a non-nil
// error means the file could not be read or replaced.
func (r *Rewriter) Rewrite(edits []Edit) ([]*EditError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	updated, editErrs := Apply(string(data), edits, r.rules)
	if len(editErrs) > 0 {
		return editErrs, nil
	}
	if updated == string(data) {
		return nil, nil
	}

	if err := r.replace([]byte(updated)); err != nil {
		return nil, err
	}
	return nil, nil
}

// replace writes content to a temporary file next to the ledger and moves
// it into place, keeping the original file mode.
func (r *Rewriter) replace(content []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(r.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
