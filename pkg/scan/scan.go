// Package scan enumerates candidate image files under a directory tree.
package scan

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// imageExts are the extensions accepted as selectable images. Files with
// these extensions are taken at face value without a stat call.
var imageExts = map[string]bool{
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// boringExts are common non-directory extensions. Entries with these are
// dropped without a stat call, everything else has to be stat-ed to tell
// directories from files. Both tables exist to keep syscalls off the hot
// path on large trees.
var boringExts = map[string]bool{
	".html": true, ".htm": true, ".txt": true, ".zip": true, ".pdf": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".doc": true,
	".xml": true, ".css": true, ".js": true,
}

// IsImagePath reports whether the path has an allow-listed image extension.
func IsImagePath(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// fileID identifies a file across hard links and symlinks, see inode_unix.go.
type fileID struct {
	dev uint64
	ino uint64
}

// Walker enumerates image files under a root directory. Verbose controls
// whether skipped entries are logged.
type Walker struct {
	Verbose bool
}

// Walk returns the ordered list of image file paths under root. Unreadable
// subdirectories and broken entries are skipped, so partial results are
// possible; only an unusable root is an error. Each (device, inode) pair is
// descended at most once, which terminates symlink cycles.
func (w *Walker) Walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	visited := map[fileID]bool{}
	if id, ok := statID(info); ok {
		visited[id] = true
	}

	var files []string
	w.walkDir(root, visited, &files)
	return files, nil
}

func (w *Walker) walkDir(dir string, visited map[fileID]bool, files *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// drop this subtree only
		log.Printf("[WARN] skip unreadable directory %s: %v", dir, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))

		switch {
		case imageExts[ext]:
			*files = append(*files, path)
			continue
		case boringExts[ext]:
			continue
		}

		// unknown extension, stat to classify; follows symlinks so a link
		// to a directory is descended like the directory itself
		info, err := os.Stat(path)
		if err != nil {
			if w.Verbose {
				log.Printf("[DEBUG] skip %s: %v", path, err)
			}
			continue
		}
		if !info.IsDir() {
			continue
		}

		if id, ok := statID(info); ok {
			if visited[id] {
				if w.Verbose {
					log.Printf("[DEBUG] skip %s: already visited, symlink loop", path)
				}
				continue
			}
			visited[id] = true
		}
		w.walkDir(path, visited, files)
	}
}
