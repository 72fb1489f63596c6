package server

import (
	"context"
	"log"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"finstack/app/agent"
	"finstack/app/api"
	"finstack/app/middleware"
	"finstack/config"
	"finstack/extract"
	"finstack/kb"
	"finstack/model"
	"finstack/store"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    50 * 1024 * 1024,
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
}

func NewServer(cfg config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(ctx, config.PostgresDSN(), s.cfg.IndexName, s.cfg.EmbeddingDim)
	if err != nil {
		log.Fatal("error to connect to Postgres database: ", err)
	}
	if err := pgStore.Init(ctx); err != nil {
		log.Fatal("error to create tables: ", err)
	}

	embedder := model.NewOllamaEmbedder(s.cfg.EmbeddingURL, s.cfg.EmbeddingModel, s.cfg.EmbeddingDim)
	service := kb.New(embedder, pgStore, s.logger, kb.Defaults{
		ChunkSize:      s.cfg.ChunkSize,
		ChunkOverlap:   s.cfg.ChunkOverlap,
		TopK:           s.cfg.TopK,
		ScoreThreshold: s.cfg.ScoreThreshold,
	})
	answerer := agent.New(s.cfg.LLMURL, s.cfg.LLMModel)
	extractor := extract.New(s.cfg.ConverterURL)
	extractor.CropTop = s.cfg.PDFCropTop
	extractor.CropBottom = s.cfg.PDFCropBottom

	var (
		app            = fiber.New(fiberConfig)
		checkHandler   = api.NewCheckHandler()
		requestHandler = api.NewRequestHandler(service, answerer)
		fileHandler    = api.NewFileHandler(service, extractor)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1")
	)

	app.Use(middleware.RequestLogger(s.logger))

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/query", requestHandler.HandleQuery)
	apiv1.Post("/documents", fileHandler.HandleUpload)
	apiv1.Delete("/documents/:filename", fileHandler.HandleDelete)
	apiv1.Get("/stats", fileHandler.HandleStats)

	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
	}
}
