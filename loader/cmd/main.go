package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finstack/config"
	"finstack/extract"
	"finstack/kb"
	"finstack/loader/internal"
	"finstack/loader/service"
	"finstack/model"
	"finstack/store"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	cfg := config.FromEnv()

	if err := internal.CreateDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		log.Fatal("error to create loader directories: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgresStore(ctx, config.PostgresDSN(), cfg.IndexName, cfg.EmbeddingDim)
	if err != nil {
		log.Fatal("error to connect to Postgres database: ", err)
	}
	if err := pgStore.Init(ctx); err != nil {
		log.Fatal("error to create tables: ", err)
	}
	defer pgStore.Close()

	embedder := model.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	knowledge := kb.New(embedder, pgStore, slog.Default(), kb.Defaults{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		TopK:           cfg.TopK,
		ScoreThreshold: cfg.ScoreThreshold,
	})
	extractor := extract.New(cfg.ConverterURL)
	extractor.CropTop = cfg.PDFCropTop
	extractor.CropBottom = cfg.PDFCropBottom

	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
		<-sigch
		log.Println("Received shutdown signal, shutting down loader...")
		cancel()
	}()

	service.New(cfg, knowledge, extractor).Run(ctx)
}

func mustLoadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
}
