package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"coursetalk/internal/api"
	"coursetalk/internal/config"
	"coursetalk/internal/forum"
	"coursetalk/internal/forum/mongostore"
	"coursetalk/internal/forum/sqlstore"
	"coursetalk/internal/router"
	"coursetalk/internal/search"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, reading env vars from system")
	}
	cfg := config.Load()

	backend, err := openBackend(cfg)
	if err != nil {
		log.WithError(err).Fatal("open storage backend")
	}

	engine, err := openSearch(cfg, backend)
	if err != nil {
		log.WithError(err).Fatal("open search backend")
	}
	if err := engine.InitializeIndices(context.Background(), false); err != nil {
		log.WithError(err).Fatal("initialize search indices")
	}

	svc := api.NewService(backend, engine)

	gin.SetMode(cfg.GinMode)
	r := gin.Default()
	router.RegisterRoutes(r, svc)

	log.WithFields(log.Fields{
		"storage": cfg.StorageBackend,
		"search":  cfg.SearchBackend,
		"port":    cfg.Port,
	}).Info("forum server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func openBackend(cfg *config.Config) (forum.Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageMongo:
		return mongostore.Open(cfg.MongoURL, cfg.MongoDatabase)
	case config.StorageSQL:
		return sqlstore.Open(cfg.DatabaseURL)
	default:
		return nil, forum.InvalidArgumentf("storage backend %q", cfg.StorageBackend)
	}
}

func openSearch(cfg *config.Config, backend forum.Backend) (search.Engine, error) {
	switch cfg.SearchBackend {
	case config.SearchElasticsearch:
		return search.NewElastic(cfg.ElasticsearchURL, backend)
	case config.SearchBleve:
		return search.NewBleve(cfg.BlevePath, backend)
	case config.SearchNone:
		return search.NewDisabled(), nil
	default:
		return nil, forum.InvalidArgumentf("search backend %q", cfg.SearchBackend)
	}
}
