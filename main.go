package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/joho/godotenv"

	"inkwiki/config"
	"inkwiki/config/database"
	"inkwiki/internal/attachment"
	docHandler "inkwiki/internal/document"
	"inkwiki/internal/document/repository"
	"inkwiki/internal/document/service"
	"inkwiki/internal/wiki"
	"inkwiki/pkg/logger"
	"inkwiki/router"
	"inkwiki/socket"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	cfg := config.Load()

	db := database.Connect()
	defer db.Close()
	if err := database.EnsureSchema(db); err != nil {
		logger.Sugar.Fatalf("Failed to ensure database schema: %v", err)
	}

	local, err := attachment.NewLocalStore(cfg.Server.FilesDir)
	if err != nil {
		logger.Sugar.Fatalf("Failed to prepare files directory: %v", err)
	}

	var remote service.RemoteStore
	if cfg.S3.Enable {
		client, err := attachment.NewS3Client(context.Background(), cfg.S3)
		if err != nil {
			logger.Sugar.Fatalf("Failed to initialize S3 client: %v", err)
		}
		remote = client
		logger.Sugar.Infof("S3 client initialized for bucket: %s", cfg.S3.Bucket)
	} else {
		logger.Sugar.Warn("S3 integration is disabled in config")
	}

	var tmpl *wiki.Template
	if cfg.Server.TemplatePath != "" {
		tmpl, err = wiki.Load(cfg.Server.TemplatePath)
		if err != nil {
			logger.Sugar.Warnf("Wiki template unavailable, '/' route disabled: %v", err)
			tmpl = nil
		}
	}

	hub := socket.NewHub()
	go hub.Run()

	repo := repository.NewDocumentRepository(db)
	svc := service.NewDocumentService(repo, local, remote, hub, cfg.S3)
	handler := docHandler.NewDocumentHandler(svc, tmpl, cfg.Status)

	logger.Sugar.Infof("Wiki server listening on %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, router.Setup(handler, hub, cfg)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar.Fatalf("Server error: %v", err)
	}
}
