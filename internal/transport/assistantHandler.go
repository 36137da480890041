package transport

import (
	"net/http"

	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/gin-gonic/gin"
)

type AssistantHandler struct {
	assistantService service.AssistantService
}

func NewAssistantHandler(assistantService service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

func (h *AssistantHandler) Suggest(c *gin.Context) {
	var req service.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.assistantService.Suggest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "suggestions ready", result)
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	reply, err := h.assistantService.Chat(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "reply ready", reply)
}
