// Package scanner discovers library and binary crates in a Cargo source tree.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/frederic-klein/cargo-dockerfile/internal/crate"
)

// Scanner walks a source tree looking for crate entry points.
type Scanner struct {
	log *slog.Logger
}

// NewScanner creates a scanner. A nil logger discards output.
func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scanner{log: log}
}

// Result holds the crate roots found by a scan, in traversal order.
type Result struct {
	Root string
	Libs []string
	Bins []string
}

// Scan walks root and classifies every lib.rs and main.rs into a crate root.
// Hidden entries and entries that fail during the walk are skipped.
func (s *Scanner) Scan(root string) (*Result, error) {
	canonical, err := Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}

	res := &Result{Root: canonical}
	seenLibs := make(map[string]bool)
	seenBins := make(map[string]bool)

	walkErr := filepath.WalkDir(canonical, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != canonical {
				return filepath.SkipDir
			}
			return nil
		}

		if path != canonical && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if name != crate.LibEntry && name != crate.BinEntry {
			return nil
		}
		if !isFile(path, d) {
			return nil
		}

		dir := entryRoot(path)
		if !withinRoot(canonical, dir) {
			s.log.Debug("skipping entry outside the scan root", "path", path)
			return nil
		}

		switch name {
		case crate.LibEntry:
			if !seenLibs[dir] {
				seenLibs[dir] = true
				res.Libs = append(res.Libs, dir)
			}
		case crate.BinEntry:
			if !seenBins[dir] {
				seenBins[dir] = true
				res.Bins = append(res.Bins, dir)
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", canonical, walkErr)
	}

	s.log.Debug("scan complete", "root", canonical, "libs", len(res.Libs), "bins", len(res.Bins))
	return res, nil
}

// Canonicalize returns the absolute path of p with symlinks resolved.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// isFile follows symlinks, so a linked entry file counts and a broken link does not.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// withinRoot reports whether dir is root or lies below it.
func withinRoot(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// entryRoot strips <crate>/src/<entry> down to <crate>.
func entryRoot(path string) string {
	return filepath.Dir(filepath.Dir(path))
}
