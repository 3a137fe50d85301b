package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

const workdirMode = 0o755

// EnsureWorkdir creates dir with mode 0755 when it does not exist.
func EnsureWorkdir(ctx context.Context, dir string) error {
	if dir == "" {
		return errors.New("working directory is not configured")
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", dir)
		}
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("checking working directory: %w", err)
	}

	slog.InfoContext(ctx, "creating working directory", "path", dir)
	if err := os.MkdirAll(dir, workdirMode); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	// MkdirAll is subject to umask
	if err := os.Chmod(dir, workdirMode); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	return nil
}
