package scan

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Locate asks the host's locate(1) index for image files under a root
// instead of walking the tree. It is strictly an accelerator: any failure
// (missing binary, stale index, non-zero exit) is reported to the caller,
// which falls back to Walker.
type Locate struct {
	Binary string // defaults to "locate"
}

// Candidates returns image paths under root according to the locate index.
func (l *Locate) Candidates(ctx context.Context, root string) ([]string, error) {
	binary := l.Binary
	if binary == "" {
		binary = "locate"
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	prefix := strings.TrimSuffix(abs, "/") + "/"

	out, err := exec.CommandContext(ctx, binary, "-i", prefix).Output() //nolint:gosec // binary name from config
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", binary, err)
	}

	var files []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		path := sc.Text()
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if base := filepath.Base(path); strings.HasPrefix(base, ".") {
			continue
		}
		if IsImagePath(path) {
			files = append(files, path)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s output: %w", binary, err)
	}
	return files, nil
}
