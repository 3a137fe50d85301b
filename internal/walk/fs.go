package walk

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Entry is a regular file found by a walk.
type Entry interface {
	// Path is the name of the walked filesystem joined with Rel. In most
	// cases it'll be an absolute path to the file.
	Path() string
	// Rel is the slash separated path inside the walked filesystem.
	Rel() string
	Open() (io.ReadCloser, error)
	Stat() (fs.FileInfo, error)
}

type config struct {
	maxDepth   int
	skipHidden bool
}

type Option func(*config)

// MaxDepth limits the walk to files at most n directories below the root.
// Files directly in the root are at depth 0.
func MaxDepth(n int) Option {
	return func(c *config) {
		c.maxDepth = n
	}
}

// SkipHidden skips files and directories whose name starts with a dot.
func SkipHidden() Option {
	return func(c *config) {
		c.skipHidden = true
	}
}

// Roots is a convenience wrapper around FS for os.Root. See FS for details.
func Roots(ctx context.Context, roots []*os.Root, opts ...Option) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			for entry, err := range FS(ctx, root.FS(), root.Name(), opts...) {
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks the filesystem rooted at root in lexical order and
// returns a handle for every regular file found. Or an error if file
// information retrieval fails. It does not follow symlinks.
func FS(ctx context.Context, root fs.FS, name string, opts ...Option) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}
	cfg := config{maxDepth: -1}
	for _, o := range opts {
		o(&cfg)
	}

	return func(yield func(Entry, error) bool) {
		fn := func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if p != "." {
				if cfg.skipHidden && strings.HasPrefix(path.Base(p), ".") {
					return skip(d)
				}
				if d != nil && d.IsDir() && cfg.maxDepth >= 0 && depth(p) > cfg.maxDepth {
					return fs.SkipDir
				}
			}
			var entry = fsEntry{
				root:    root,
				abspath: filepath.Join(name, filepath.FromSlash(p)),
				path:    p,
			}
			var yieldErr error
			if err != nil {
				yieldErr = err
			} else {
				if d.IsDir() {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					entry.infoErr = err
					yieldErr = err
				} else {
					if !info.Mode().IsRegular() {
						return nil
					}
					entry.info = info
				}
			}

			if !yield(entry, yieldErr) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

// depth of a directory, the first level below the root is 1
func depth(p string) int {
	return strings.Count(p, "/") + 1
}

func skip(d fs.DirEntry) error {
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}

// fsEntry implements Entry for a filesystem
// it uses root.Open to open the file
type fsEntry struct {
	root    fs.FS
	abspath string
	path    string
	info    fs.FileInfo
	infoErr error
}

func (e fsEntry) Path() string {
	return e.abspath
}

func (e fsEntry) Rel() string {
	return e.path
}

func (e fsEntry) Open() (io.ReadCloser, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return e.root.Open(e.path)
}

func (e fsEntry) Stat() (fs.FileInfo, error) {
	return e.info, e.infoErr
}
