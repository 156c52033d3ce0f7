// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"smartdeals-service/internal/config"
	campaignHandler "smartdeals-service/internal/handlers/campaign"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	core   *Core
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	core, err := BuildCore(ctx, s.cfg, logger)
	if err != nil {
		return err
	}
	s.core = core

	handlers := &Handlers{
		CampaignHandler: campaignHandler.NewCampaignHandler(core.Manager),
	}
	SetupRouter(s.engine, logger, handlers)

	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown releases the server's connections.
func (s *Server) Shutdown(ctx context.Context) {
	if s.core != nil {
		s.core.Close()
	}
}
