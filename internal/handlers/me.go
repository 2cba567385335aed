package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/browsepilot-org/browsepilot-backend/internal/services"
)

type MeHandler struct {
  meService services.MeService
}

func NewMeHandler(meService services.MeService) *MeHandler {
  return &MeHandler{meService: meService}
}

func (mh *MeHandler) GetMe(c *gin.Context) {
  user, err := mh.meService.GetMe(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"user": user})
}

func (mh *MeHandler) GetMyOrganizations(c *gin.Context) {
  organizations, err := mh.meService.GetMyOrganizations(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"organizations": organizations})
}
