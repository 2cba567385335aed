package main

import (
  "fmt"
  "os"
  "time"

  "github.com/joho/godotenv"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/utils"
  "github.com/browsepilot-org/browsepilot-backend/internal/db"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
  "github.com/browsepilot-org/browsepilot-backend/internal/seed"
  "github.com/browsepilot-org/browsepilot-backend/internal/services"
  "github.com/browsepilot-org/browsepilot-backend/internal/socket"
  "github.com/browsepilot-org/browsepilot-backend/internal/handlers"
  "github.com/browsepilot-org/browsepilot-backend/internal/middleware"
  "github.com/browsepilot-org/browsepilot-backend/internal/server"
)

func main() {
  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Environment Variables
  if err := godotenv.Load(); err != nil {
    log.Debug("No .env file found, relying on process environment")
  }
  log.Info("Attempting to load environment variables for Main now...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  log.Info("Environment variables loaded for Main :)")

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Fatal error: Cannot init Postgres", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  seedDevData := utils.GetEnv("SEED_DEV_DATA", "false", log) == "true"

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(thePG, log)
  organizationRepo := repos.NewOrganizationRepo(thePG, log)
  membershipRepo := repos.NewMembershipRepo(thePG, log)
  aiChatRepo := repos.NewAiChatRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Seeding
  if seedDevData {
    if err := seed.SeedDevData(thePG, log, userRepo, organizationRepo, membershipRepo); err != nil {
      log.Warn("Dev data seeding failed", "error", err)
    }
  }

  // Websocket Setup
  log.Info("Setting Up Websocket Hub From Main Now :)")
  wsHub := socket.NewHub(log)
  log.Info("Websocket Hub Set Up From Main Successful :)")

  // Redis PubSub
  log.Info("Setting Up Redis PubSub From Main Now :)")
  redisChanName := "browsepilot_hub_broadcast"
  redisPubSub, err := socket.NewRedisPubSub(log, redisAddress, redisPassword, redisChanName)
  if err != nil {
    log.Warn("Failed to init redis pubsub", "error", err)
  } else {
    if err := redisPubSub.StartSubscriber(wsHub); err != nil {
      log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
    } else {
      wsHub.SetRedisPubSub(redisPubSub)
      log.Info("Redis pubsub is active!")
    }
  }

  // Services Setup
  log.Info("Setting up Services from Main now...")
  authService := services.NewAuthService(thePG, log, userRepo, organizationRepo, membershipRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
  membershipService := services.NewMembershipService(thePG, log, membershipRepo)
  wsHub.SetChannelAuthorizer(services.NewSocketAuthService(log, membershipRepo))
  meService := services.NewMeService(thePG, log, userRepo, organizationRepo, membershipRepo)
  // The completion backend is chosen exactly once, here, and passed by
  // reference into everything that needs it.
  completionService, err := services.NewCompletionServiceFromEnv(log)
  if err != nil {
    log.Error("Fatal error: Cannot init CompletionService", "error", err)
    os.Exit(1)
  }
  aiChatService := services.NewAiChatService(thePG, log, aiChatRepo, membershipService, completionService, wsHub)
  log.Info("Services Set Up From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  authHandler := handlers.NewAuthHandler(authService)
  meHandler := handlers.NewMeHandler(meService)
  aiChatHandler := handlers.NewAiChatHandler(aiChatService)
  wsHandler := handlers.WsHandler(wsHub, log)
  log.Info("Handlers Set Up From Main Successful :)")

  // MiddleWare Setup
  log.Info("Setting Up Middleware from Main now...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)
  log.Info("Middleware Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:     authHandler,
    AuthMiddleware:  authMiddleware,
    MeHandler:       meHandler,
    AiChatHandler:   aiChatHandler,
    WsHandler:       wsHandler,
  })
  log.Info("Router Set Up From Main Successful :)")

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }

  // On Shutdown
  if redisPubSub != nil {
    redisPubSub.Stop()
  }
}
