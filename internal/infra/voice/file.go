package voice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vocalights/internal/application"
)

const fallbackPoll = 5 * time.Second

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
}

// FileSource reads utterances dropped into a directory. A .txt file holds a
// phrase; audio files are passed on for transcription. Consumed files are
// renamed with a .processed suffix.
type FileSource struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	processed map[string]bool
	watcher   *fsnotify.Watcher
}

func NewFileSource(dir string, logger *slog.Logger) *FileSource {
	return &FileSource{
		dir:       dir,
		logger:    logger,
		processed: make(map[string]bool),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating drop dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Warn("fsnotify unavailable, polling drop dir", "error", err)
		return nil
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		f.logger.Warn("watching drop dir failed, polling instead", "dir", f.dir, "error", err)
		return nil
	}

	f.mu.Lock()
	f.watcher = watcher
	f.mu.Unlock()
	return nil
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.Close()
	f.watcher = nil
	return err
}

func (f *FileSource) Next(ctx context.Context) (application.Utterance, error) {
	f.mu.Lock()
	watcher := f.watcher
	f.mu.Unlock()

	var events chan fsnotify.Event
	var errs chan error
	interval := 500 * time.Millisecond
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
		interval = fallbackPoll
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		utt, ok, err := f.checkForNewFile()
		if err != nil {
			return application.Utterance{}, err
		}
		if ok {
			return utt, nil
		}

		select {
		case <-ctx.Done():
			return application.Utterance{}, ctx.Err()
		case ev, open := <-events:
			if !open {
				events = nil
				continue
			}
			f.logger.Debug("drop dir event", "file", ev.Name, "op", ev.Op.String())
		case err, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			f.logger.Warn("drop dir watcher error", "error", err)
		case <-ticker.C:
		}
	}
}

func (f *FileSource) checkForNewFile() (application.Utterance, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return application.Utterance{}, false, fmt.Errorf("reading dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && !audioExtensions[ext] {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		if f.processed[path] {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return application.Utterance{}, false, fmt.Errorf("reading file %s: %w", path, err)
		}
		// still being written
		if len(data) == 0 {
			continue
		}

		f.processed[path] = true
		if err := os.Rename(path, path+".processed"); err != nil {
			f.logger.Warn("marking file processed", "file", path, "error", err)
		}

		if ext == ".txt" {
			return application.Utterance{Text: strings.TrimSpace(string(data))}, true, nil
		}
		return application.Utterance{Audio: data}, true, nil
	}

	return application.Utterance{}, false, nil
}
