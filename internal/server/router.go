package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"

  "github.com/browsepilot-org/browsepilot-backend/internal/handlers"
  "github.com/browsepilot-org/browsepilot-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler           *handlers.AuthHandler
  AuthMiddleware        *middleware.AuthMiddleware
  MeHandler             *handlers.MeHandler
  AiChatHandler         *handlers.AiChatHandler
  WsHandler             gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
        "http://localhost:3000",
        "https://browsepilot.dev",
        "https://www.browsepilot.dev",
    },
    AllowMethods:     []string{"GET","POST","PUT","DELETE","PATCH","OPTIONS"},
    AllowHeaders:     []string{"Authorization","Content-Type","X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  protected.Use(middleware.AttachRequestContext())
  protected.GET("/ws", cfg.WsHandler)

  //Me
  protected.GET("/me", cfg.MeHandler.GetMe)
  protected.GET("/me/organizations", cfg.MeHandler.GetMyOrganizations)

  //AI Chats
  ai := protected.Group("/ai")
  ai.GET("/chats", cfg.AiChatHandler.ListChats)
  ai.GET("/chats/:id", cfg.AiChatHandler.GetChat)
  ai.POST("/chats", cfg.AiChatHandler.CreateChat)
  ai.PUT("/chats/:id", cfg.AiChatHandler.RenameChat)
  ai.DELETE("/chats/:id", cfg.AiChatHandler.DeleteChat)
  ai.POST("/chats/:id/messages", cfg.AiChatHandler.SendMessages)

  return router
}
