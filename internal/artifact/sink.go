package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink delivers a compiled contact file somewhere
type Sink interface {
	Deliver(ctx context.Context, filename string, content []byte) error
}

// DiskSink writes contact files into a directory
type DiskSink struct {
	Dir string
}

// Deliver writes content to Dir/filename, replacing an existing file
func (s DiskSink) Deliver(ctx context.Context, filename string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Path returns where Deliver puts filename
func (s DiskSink) Path(filename string) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.Base(filename))
}
