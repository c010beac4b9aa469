package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/questhold/questhold/pkg/interfaces"
)

// DefaultGameFileExtensions are the file types treated as a single game when
// they sit directly inside a library directory.
var DefaultGameFileExtensions = []string{
	"zip", "tar", "gz", "rar", "7z", "bz2", "xz", "iso", "jar", "tgz",
	"exe", "bat", "cmd", "com", "msi", "bin", "run", "app", "dmg", "elf",
}

// WalkOptions controls which directory entries count as game candidates.
type WalkOptions struct {
	// Extensions without the leading dot, compared case-insensitively
	Extensions           []string
	ScanEmptyDirectories bool
}

// SkippedRoot is a mapping root that could not be read.
type SkippedRoot struct {
	Path string
	Err  error
}

// WalkResult lists the candidate paths found under all mappings.
type WalkResult struct {
	Paths   []string
	Skipped []SkippedRoot
}

// Unreachable reports whether path is or lies below a skipped root. Nothing
// is known about such paths until the root can be read again.
func (r *WalkResult) Unreachable(path string) bool {
	path = filepath.Clean(path)
	for _, root := range r.Skipped {
		if path == root.Path || isWithin(path, root.Path) {
			return true
		}
	}
	return false
}

// Walker enumerates game candidates: the top-level entries of each mapping.
type Walker struct {
	logger interfaces.Logger
}

// NewWalker creates a new walker
func NewWalker(logger interfaces.Logger) *Walker {
	return &Walker{logger: logger}
}

type walkRoot struct {
	path string
	real string
}

// Walk reads the top-level entries of every mapping root. Unreadable roots
// are logged and skipped; only context cancellation fails the walk.
func (w *Walker) Walk(ctx context.Context, mappings []DirectoryMapping, opts WalkOptions) (*WalkResult, error) {
	result := &WalkResult{}
	extensions := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	roots := w.resolveRoots(mappings, result)
	found := make(map[string]struct{})
	seenReal := make(map[string]string)

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(root.path)
		if err != nil {
			w.skip(result, root.path, err)
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}

			path := filepath.Join(root.path, name)
			isDir, real, err := resolveEntry(path, entry)
			if err != nil {
				w.logger.Warn("Error accessing path",
					interfaces.String("path", path),
					interfaces.Error(err))
				continue
			}

			if isDir {
				if real == root.real || isWithin(root.real, real) {
					w.logger.Warn("Skipping symlink cycle",
						interfaces.String("path", path),
						interfaces.String("target", real))
					continue
				}
			} else if !hasExtension(name, extensions) {
				continue
			}

			if other, covered := coveredByOtherRoot(real, root, roots); covered {
				w.logger.Debug("Skipping path owned by another directory mapping",
					interfaces.String("path", path),
					interfaces.String("mapping", other))
				continue
			}

			if isDir && !opts.ScanEmptyDirectories {
				empty, err := isEmptyDir(path)
				if err != nil {
					w.logger.Warn("Error reading directory",
						interfaces.String("path", path),
						interfaces.Error(err))
					continue
				}
				if empty {
					continue
				}
			}

			if first, dup := seenReal[real]; dup {
				w.logger.Debug("Skipping duplicate path",
					interfaces.String("path", path),
					interfaces.String("duplicate_of", first))
				continue
			}
			seenReal[real] = path
			found[path] = struct{}{}
		}
	}

	result.Paths = make([]string, 0, len(found))
	for p := range found {
		result.Paths = append(result.Paths, p)
	}
	sort.Strings(result.Paths)

	return result, nil
}

func (w *Walker) resolveRoots(mappings []DirectoryMapping, result *WalkResult) []walkRoot {
	roots := make([]walkRoot, 0, len(mappings))
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		path := filepath.Clean(m.InternalPath)
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		info, err := os.Stat(path)
		if err != nil {
			w.skip(result, path, err)
			continue
		}
		if !info.IsDir() {
			w.skip(result, path, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, path))
			continue
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			w.skip(result, path, err)
			continue
		}
		roots = append(roots, walkRoot{path: path, real: real})
	}
	return roots
}

func (w *Walker) skip(result *WalkResult, path string, err error) {
	w.logger.Warn("Skipping unreadable library directory",
		interfaces.String("path", path),
		interfaces.Error(err))
	result.Skipped = append(result.Skipped, SkippedRoot{Path: path, Err: err})
}

// coveredByOtherRoot reports whether real is, contains, or (unless root is
// itself nested in it) lies inside another mapping root.
func coveredByOtherRoot(real string, root walkRoot, roots []walkRoot) (string, bool) {
	for _, other := range roots {
		if other.real == root.real {
			continue
		}
		if real == other.real || isWithin(other.real, real) {
			return other.path, true
		}
		if isWithin(real, other.real) && !isWithin(root.real, other.real) {
			return other.path, true
		}
	}
	return "", false
}

func resolveEntry(path string, entry fs.DirEntry) (bool, string, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		if !entry.IsDir() && !entry.Type().IsRegular() {
			return false, "", fmt.Errorf("unsupported file type %s", entry.Type())
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return false, "", err
		}
		return entry.IsDir(), real, nil
	}

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, "", err
	}
	info, err := os.Stat(real)
	if err != nil {
		return false, "", err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return false, "", fmt.Errorf("unsupported file type %s", info.Mode().Type())
	}
	return info.IsDir(), real, nil
}

func hasExtension(name string, extensions map[string]struct{}) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := extensions[ext]
	return ok
}

func isEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// isWithin reports whether path is strictly below base.
func isWithin(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// DiskUsage returns the size of a file, or the total size of all regular
// files below a directory. Nested symlinks are not followed. On read errors
// the partial sum is returned together with the first error.
func DiskUsage(path string) (int64, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	var firstErr error
	_ = filepath.WalkDir(real, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		total += fi.Size()
		return nil
	})

	return total, firstErr
}
