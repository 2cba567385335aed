package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/browsepilot-org/browsepilot-backend/internal/services"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type AuthHandler struct {
  authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
  return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
  Email             string      `json:"email" binding:"required,email"`
  Password          string      `json:"password" binding:"required,min=8"`
  FirstName         string      `json:"firstName" binding:"required"`
  LastName          string      `json:"lastName" binding:"required"`
  OrganizationName  string      `json:"organizationName"`
}

type LoginRequest struct {
  Email             string      `json:"email" binding:"required,email"`
  Password          string      `json:"password" binding:"required"`
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req RegisterRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  user := &types.User{
    Email:     req.Email,
    Password:  req.Password,
    FirstName: req.FirstName,
    LastName:  req.LastName,
  }
  if err := ah.authService.RegisterUser(c.Request.Context(), user, req.OrganizationName); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"user": user})
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req LoginRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  token, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "accessToken": token,
    "expiresIn":   int(ah.authService.GetAccessTTL().Seconds()),
  })
}
