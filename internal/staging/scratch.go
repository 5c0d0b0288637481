// Package staging manages the scratch area: one private directory per
// request, removed when the request ends, plus a sweep for directories left
// behind by a crash.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// requestDirPrefix marks directories created by NewRequestDir.
const requestDirPrefix = "req-"

// RequestDir is a per-request scratch directory.
type RequestDir struct {
	Path string
}

// NewRequestDir creates a unique directory under root for requestID.
func NewRequestDir(root, requestID string) (RequestDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return RequestDir{}, errors.New("scratch root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return RequestDir{}, fmt.Errorf("create scratch root: %w", err)
	}
	label := requestID
	if len(label) > 8 {
		label = label[:8]
	}
	path, err := os.MkdirTemp(root, requestDirPrefix+label+"-")
	if err != nil {
		return RequestDir{}, fmt.Errorf("create request dir: %w", err)
	}
	return RequestDir{Path: path}, nil
}

// Remove deletes the directory and everything in it. Safe to call twice.
func (d RequestDir) Remove() error {
	if d.Path == "" {
		return nil
	}
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("remove request dir: %w", err)
	}
	return nil
}

// Join returns a path inside the directory.
func (d RequestDir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Path}, elem...)...)
}
