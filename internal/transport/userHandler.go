package transport

import (
	"net/http"

	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetMe(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "user retrieved successfully", user)
}

// LinkTelegram привязывает чат, id которого бот прислал в ответ на /start
func (h *UserHandler) LinkTelegram(c *gin.Context) {
	var req service.LinkTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.LinkTelegram(c.Request.Context(), middleware.IdentityFrom(c), req.TelegramID)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "telegram linked successfully", user)
}
