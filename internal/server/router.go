package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/handlers"
  "github.com/yungbote/prepgraph-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler          *handlers.AuthHandler
  AuthMiddleware       *middleware.AuthMiddleware
  MaterialHandler      *handlers.MaterialHandler
  VisualizationHandler *handlers.VisualizationHandler
  MasteryHandler       *handlers.MasteryHandler
  SSEHandler           *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/register", cfg.AuthHandler.Register)
  router.POST("/login", cfg.AuthHandler.Login)

  // ===============
  // || Protected ||
  // ===============
  protected := router.Group("/api")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // SSE
  protected.GET("/sse/stream", cfg.SSEHandler.Stream)
  // Study materials
  protected.POST("/materials", cfg.MaterialHandler.Upload)
  protected.GET("/materials", cfg.MaterialHandler.List)
  protected.GET("/materials/:materialID", cfg.MaterialHandler.Get)
  protected.POST("/materials/:materialID/retry", cfg.MaterialHandler.Retry)
  protected.DELETE("/materials/:materialID", cfg.MaterialHandler.Delete)
  // Knowledge graph visualization
  viz := protected.Group("/knowledge_visualization/:materialID")
  viz.GET("/graph_data", cfg.VisualizationHandler.GraphData)
  viz.GET("/nodes/:nodeID", cfg.VisualizationHandler.NodeDetail)
  viz.GET("/statistics", cfg.VisualizationHandler.Statistics)
  viz.POST("/filter", cfg.VisualizationHandler.FilterNodes)
  // Mastery
  protected.GET("/nodes/:nodeID/mastery", cfg.MasteryHandler.GetNodeMastery)
  protected.POST("/nodes/:nodeID/mastery/attempts", cfg.MasteryHandler.RecordAttempt)
  protected.GET("/materials/:materialID/mastery/summary", cfg.MasteryHandler.MaterialSummary)

  return router
}
