package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"choose-rich-backend/internal/models"
	"choose-rich-backend/internal/services"
)

type MinesHandler struct {
	settlement *services.Settlement
}

func NewMinesHandler(settlement *services.Settlement) *MinesHandler {
	return &MinesHandler{settlement: settlement}
}

func (h *MinesHandler) Start(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.MinesStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.settlement.StartMines(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MinesHandler) Move(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.MinesMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.settlement.MoveMines(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MinesHandler) Cashout(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.MinesCashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.settlement.CashoutMines(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
