// Package watch feeds video files dropped into the inbox directory to the
// sensing pipeline.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
	".avi":  true,
}

// Handler is called once per settled video file.
type Handler func(path string)

// Watcher monitors one inbox directory. Files are handed off only after
// their size stops changing, so half-copied videos are never processed.
type Watcher struct {
	dir     string
	settle  time.Duration
	handler Handler
	log     *slog.Logger
}

// NewWatcher returns a watcher over dir. settle is how long a file's size
// must stay constant before it counts as fully written.
func NewWatcher(dir string, settle time.Duration, handler Handler, log *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{dir: dir, settle: settle, handler: handler, log: log}
}

// Run watches the inbox until the context is cancelled. Existing files in
// the inbox are picked up on start.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	w.log.Info("watching inbox", "dir", w.dir)

	// size sentinel -1 forces at least one full settle interval
	pending := map[string]int64{}
	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, e := range entries {
			path := filepath.Join(w.dir, e.Name())
			if !e.IsDir() && isVideo(path) {
				pending[path] = -1
			}
		}
	}

	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isVideo(event.Name) {
				if _, tracked := pending[event.Name]; !tracked {
					w.log.Info("inbox file detected", "path", event.Name)
				}
				pending[event.Name] = -1
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("inbox watch error", "error", err)

		case <-ticker.C:
			for path, lastSize := range pending {
				info, err := os.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if info.Size() != lastSize {
					pending[path] = info.Size()
					continue
				}
				delete(pending, path)
				w.log.Info("inbox file settled", "path", path, "bytes", info.Size())
				w.handler(path)
			}
		}
	}
}

func isVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// MoveTo relocates a settled inbox file into dir and returns its new
// path. Inbox drops go through here so they live under the uploads root
// like direct uploads, and their frames resolve to /uploads URLs.
func MoveTo(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(path))

	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}

	// Rename fails across filesystems; fall back to copy and remove.
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create dest: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("close dest: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove source: %w", err)
	}
	return dest, nil
}
