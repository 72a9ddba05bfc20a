package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"choose-rich-backend/internal/models"
	"choose-rich-backend/internal/services"
)

type ApexHandler struct {
	settlement *services.Settlement
}

func NewApexHandler(settlement *services.Settlement) *ApexHandler {
	return &ApexHandler{settlement: settlement}
}

func (h *ApexHandler) Start(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.ApexStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.settlement.StartApex(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ApexHandler) Choose(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.ApexChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.settlement.ChooseApex(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
