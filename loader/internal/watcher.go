// Package internal watches the drop directory for documents to ingest.
// A file is handed off only after it has sat unchanged for the settle
// period, so half-copied files never reach the pipeline.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Watcher struct {
	sourceDir string
	settle    time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(sourceDir string, settle time.Duration) *Watcher {
	return &Watcher{
		sourceDir:  sourceDir,
		settle:     settle,
		logger:     slog.Default(),
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// CreateDirectories makes sure the drop, archive, and bad directories exist.
func CreateDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// WatchFile polls the drop directory and sends settled files into fileChan.
// Files one subdirectory deep are picked up too, the subdirectory naming the
// document category.
func (w *Watcher) WatchFile(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("start monitoring folder", "dir", w.sourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer w.logger.Info("file watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := make(map[string]bool)
			for _, filePath := range w.listFiles() {
				current[filePath] = true
				if ready := w.track(filePath); !ready {
					continue
				}
				select {
				case fileChan <- filePath:
				case <-ctx.Done():
					return
				}
			}
			w.forget(current)
		}
	}
}

// listFiles collects regular files at the top level and one subdirectory
// deep.
func (w *Watcher) listFiles() []string {
	entries, err := os.ReadDir(w.sourceDir)
	if err != nil {
		w.logger.Error("error reading source directory", "error", err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(w.sourceDir, entry.Name())
		if !entry.IsDir() {
			files = append(files, path)
			continue
		}
		subEntries, err := os.ReadDir(path)
		if err != nil {
			w.logger.Error("error reading category directory", "dir", path, "error", err)
			continue
		}
		for _, sub := range subEntries {
			if sub.IsDir() {
				continue
			}
			files = append(files, filepath.Join(path, sub.Name()))
		}
	}
	return files
}

// track records a newly seen file and reports whether it has settled long
// enough to process. A file being processed is never handed off twice.
func (w *Watcher) track(filePath string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.processing[filePath] {
		return false
	}

	firstSeen, exists := w.firstSeen[filePath]
	if !exists {
		w.firstSeen[filePath] = time.Now()
		w.logger.Info("new file detected", "file", filePath)
		return false
	}

	if time.Since(firstSeen) < w.settle {
		return false
	}

	w.processing[filePath] = true
	return true
}

// Done clears the tracking state of a processed file.
func (w *Watcher) Done(filePath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.processing, filePath)
	delete(w.firstSeen, filePath)
}

// forget drops tracking entries for files that vanished from the directory.
func (w *Watcher) forget(current map[string]bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for filePath := range w.firstSeen {
		if !current[filePath] {
			delete(w.firstSeen, filePath)
			delete(w.processing, filePath)
		}
	}
}

// DocType names the category a dropped file belongs to. Files inside a
// first-level subdirectory take its name; everything else is general
// knowledge.
func (w *Watcher) DocType(filePath string) string {
	rel, err := filepath.Rel(w.sourceDir, filePath)
	if err != nil {
		return "knowledge"
	}
	dir := filepath.Dir(rel)
	if dir == "." || dir == "" {
		return "knowledge"
	}
	return strings.ToLower(filepath.Base(dir))
}

// MoveToArchive moves a processed file into a dated subdirectory of destDir,
// renaming on name conflicts.
func (w *Watcher) MoveToArchive(filePath, destDir string) {
	dated := filepath.Join(destDir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dated, 0755); err != nil {
		w.logger.Error("error creating archive directory", "error", err)
		return
	}

	destPath := filepath.Join(dated, filepath.Base(filePath))
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(filePath)
		baseName := strings.TrimSuffix(filepath.Base(filePath), ext)
		destPath = filepath.Join(dated, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
		counter++
	}

	if err := os.Rename(filePath, destPath); err != nil {
		w.logger.Error("error moving file to archive", "error", err)
		return
	}
	w.logger.Info("file archived", "to", destPath)
}
