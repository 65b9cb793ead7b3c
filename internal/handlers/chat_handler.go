package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healtrip/healtrip-api/internal/services"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// AIChat is the general health assistant. Model outages degrade to a
// keyword reply and never surface as errors.
func (h *Handler) AIChat(c *gin.Context) {
	var req services.AIRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Assistant.AIChat(c.Request.Context(), req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Reply generated")
}

func (h *Handler) BuddyChat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.Assistant.BuddyChat(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Reply generated")
}

func (h *Handler) BuddyHistory(c *gin.Context) {
	msgs, err := h.Assistant.BuddyHistory(c.Request.Context(), c.Query("userId"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, msgs, "History fetched successfully")
}

func (h *Handler) ChatMessage(c *gin.Context) {
	var req services.MedicalChatRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Assistant.MedicalChat(c.Request.Context(), req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Reply generated")
}

func (h *Handler) ChatHistory(c *gin.Context) {
	res, err := h.Assistant.ChatHistory(c.Request.Context(), c.Param("userId"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "History fetched successfully")
}

func (h *Handler) DeleteChatHistory(c *gin.Context) {
	if err := h.Assistant.DeleteChatHistory(c.Request.Context(), c.Param("userId")); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, nil, "Chat history cleared")
}

func (h *Handler) GenerateReport(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !bind(c, &req) {
		return
	}
	report, err := h.Assistant.GenerateReport(c.Request.Context(), req.UserID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{"report": report}, "Report generated successfully")
}
