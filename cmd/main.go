package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/joho/godotenv"

  "github.com/yungbote/prepgraph-backend/internal/db"
  "github.com/yungbote/prepgraph-backend/internal/handlers"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/middleware"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/server"
  "github.com/yungbote/prepgraph-backend/internal/services"
  "github.com/yungbote/prepgraph-backend/internal/sse"
  "github.com/yungbote/prepgraph-backend/internal/utils"
)

func main() {
  _ = godotenv.Load()

  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  materialRepo := repos.NewStudyMaterialRepo(thePG, log)
  questionRepo := repos.NewQuestionRepo(thePG, log)
  questionOptionRepo := repos.NewQuestionOptionRepo(thePG, log)
  nodeRepo := repos.NewKnowledgeNodeRepo(thePG, log)
  edgeRepo := repos.NewKnowledgeEdgeRepo(thePG, log)
  conceptRepo := repos.NewQuestionConceptRepo(thePG, log)
  masteryRepo := repos.NewUserMasteryRepo(thePG, log)
  runRepo := repos.NewProcessingRunRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)

  // Services
  log.Info("Setting up Services from main...")
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Error("Could not init BucketService", "error", err)
    os.Exit(1)
  }
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  ocrClient, err := services.NewOCRClient(log)
  if err != nil {
    log.Error("Could not init OCRClient", "error", err)
    os.Exit(1)
  }
  notifier := services.NewJobNotifier(sseHub)
  extractionService := services.NewQuestionExtractionService(thePG, log, questionRepo, questionOptionRepo, openaiClient)
  graphService := services.NewKnowledgeGraphService(thePG, log, materialRepo, questionRepo, nodeRepo, edgeRepo, conceptRepo, openaiClient)
  processingService := services.NewProcessingService(
    thePG,
    log,
    materialRepo,
    questionRepo,
    runRepo,
    bucketService,
    ocrClient,
    extractionService,
    graphService,
    openaiClient,
    notifier,
    services.DefaultWorkerPolicy(),
    services.DefaultGraphRetryPolicy(),
  )
  processingService.StartWorker(context.Background())
  materialService := services.NewStudyMaterialService(log, materialRepo, questionRepo, runRepo, bucketService, processingService, sseHub)
  masteryService := services.NewUserMasteryService(log, masteryRepo, nodeRepo, materialRepo)
  vizService := services.NewVisualizationService(log, materialRepo, nodeRepo, edgeRepo, conceptRepo, questionRepo, masteryRepo)
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  materialHandler := handlers.NewMaterialHandler(materialService)
  vizHandler := handlers.NewVisualizationHandler(vizService)
  masteryHandler := handlers.NewMasteryHandler(masteryService)
  sseHandler := handlers.NewSSEHandler(sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:          authHandler,
    AuthMiddleware:       authMiddleware,
    MaterialHandler:      materialHandler,
    VisualizationHandler: vizHandler,
    MasteryHandler:       masteryHandler,
    SSEHandler:           sseHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
