// Package service is the loader daemon pipeline: watch the drop directory,
// extract text, ingest into the knowledge base, and archive the file.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finstack/config"
	"finstack/extract"
	"finstack/kb"
	"finstack/loader/internal"
	"finstack/types"
)

type Service struct {
	cfg       config.Config
	kb        *kb.Service
	extractor *extract.Extractor
	watcher   *internal.Watcher
	logger    *slog.Logger
}

func New(cfg config.Config, service *kb.Service, extractor *extract.Extractor) *Service {
	return &Service{
		cfg:       cfg,
		kb:        service,
		extractor: extractor,
		watcher:   internal.NewWatcher(cfg.SourceDir, cfg.MonitoringTime),
		logger:    slog.Default(),
	}
}

// Run drives the watch-process pipeline until ctx is cancelled, then waits
// for in-flight work with a shutdown timeout.
func (s *Service) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.WatchFile(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	<-ctx.Done()
	s.logger.Info("shutting down loader service")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("loader service stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout waiting for loader goroutines, forcing shutdown")
	}
}

func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	defer s.logger.Info("file processor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case filePath, ok := <-fileChan:
			if !ok {
				return
			}
			if err := s.ingestFile(ctx, filePath); err != nil {
				s.logger.Error("error processing file", "file", filePath, "error", err)
				s.watcher.MoveToArchive(filePath, s.cfg.BadDir)
			} else {
				s.watcher.MoveToArchive(filePath, s.cfg.ArchiveDir)
			}
			s.watcher.Done(filePath)
		}
	}
}

func (s *Service) ingestFile(ctx context.Context, filePath string) error {
	s.logger.Info("processing file", "file", filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	extracted, err := s.extractor.Extract(ctx, data, filepath.Base(filePath))
	if err != nil {
		return err
	}

	result, err := s.kb.Ingest(ctx, extracted.Text, types.DocumentMeta{
		Filename: filepath.Base(filePath),
		DocType:  s.watcher.DocType(filePath),
		Source:   "loader",
	})
	if err != nil {
		return err
	}

	s.logger.Info("document ingested",
		"file", result.Filename,
		"chunks", result.ChunksCreated,
		"vectors", result.VectorsUpserted,
	)
	return nil
}
