// Package sandbox confines filesystem operations to a single root directory.
//
// Containment is path based (clean, absolute and separator bounded), it's not
// an OS level jail: symlinks inside the root are followed.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
)

// Config is the configuration for the sandbox filesystem.
type Config struct {
	// Root is the directory all operations are confined to, created if missing.
	Root string
	// ReadCap is the max bytes returned by Read, defaults to conventions.ReadFileCap.
	ReadCap int
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("could not get absolute root: %w", err)
	}
	c.Root = filepath.Clean(root)

	if c.ReadCap <= 0 {
		c.ReadCap = conventions.ReadFileCap
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.FS"})
	return nil
}

// FS is a filesystem confined to a root directory.
type FS struct {
	root    string
	readCap int
	logger  log.Logger
}

// New returns a new sandbox filesystem, creating the root if it doesn't exist.
func New(cfg Config) (*FS, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("could not create sandbox root: %w", err)
	}

	return &FS{
		root:    cfg.Root,
		readCap: cfg.ReadCap,
		logger:  cfg.Logger,
	}, nil
}

// Root returns the absolute sandbox root.
func (f *FS) Root() string { return f.root }

// Resolve returns the absolute path of a path relative to the root. Absolute
// paths are also taken as relative to the root.
func (f *FS) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}

	target := filepath.Join(f.root, path)
	if !within(f.root, target) {
		return "", fmt.Errorf("%q: %w", path, model.ErrOutOfBoundsPath)
	}

	return target, nil
}

// within checks target is root or below it, comparing on a separator boundary
// so /data doesn't admit /data-secret.
func within(root, target string) bool {
	if target == root {
		return true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	return strings.HasPrefix(target, prefix)
}

// Read returns the text of a file, truncated to the read cap.
func (f *FS) Read(ctx context.Context, path string) (string, error) {
	abs, err := f.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := os.Open(abs)
	if err != nil {
		return "", wrapFSErr(path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", wrapFSErr(path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory: %w", path, model.ErrIO)
	}

	data, err := io.ReadAll(io.LimitReader(file, int64(f.readCap)+1))
	if err != nil {
		return "", wrapFSErr(path, err)
	}

	if len(data) <= f.readCap {
		return string(data), nil
	}

	f.logger.Debugf("Truncating %s read at %d bytes", path, f.readCap)

	return fmt.Sprintf("%s\n\n[truncated: file is larger than %d bytes]", headCut(data, f.readCap), f.readCap), nil
}

// Write writes the full content to a file, creating parent directories and
// overwriting any existing content. Returns the written bytes.
func (f *FS) Write(ctx context.Context, path, content string) (int, error) {
	abs, err := f.Resolve(path)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return 0, wrapFSErr(path, err)
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return 0, wrapFSErr(path, err)
	}

	f.logger.Debugf("Wrote %d bytes to %s", len(content), abs)

	return len(content), nil
}

// List lists a directory. Order is the one the platform returns, callers
// must not rely on it.
func (f *FS) List(ctx context.Context, path string) ([]model.DirEntry, error) {
	abs, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, wrapFSErr(path, err)
	}

	res := make([]model.DirEntry, 0, len(entries))
	for _, e := range entries {
		res = append(res, model.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}

	return res, nil
}

// headCut returns the first n bytes of b without splitting a trailing rune.
func headCut(b []byte, n int) []byte {
	b = b[:n]
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}

func wrapFSErr(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", path, model.ErrNotFound)
	}
	return fmt.Errorf("%q: %w: %w", path, model.ErrIO, err)
}
