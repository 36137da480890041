package transport

import (
	"net/http"

	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// AdminHandler обслуживает операторские маршруты очереди уведомлений
type AdminHandler struct {
	queueAdmin service.QueueAdminService
}

func NewAdminHandler(queueAdmin service.QueueAdminService) *AdminHandler {
	return &AdminHandler{queueAdmin: queueAdmin}
}

func (h *AdminHandler) GetQueueOverview(c *gin.Context) {
	overview, err := h.queueAdmin.GetOverview(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "queue stats", overview)
}

func (h *AdminHandler) ListFailedTasks(c *gin.Context) {
	var req service.ListFailedTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	tasks, err := h.queueAdmin.ListFailedTasks(c.Request.Context(), middleware.IdentityFrom(c), req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "failed tasks", tasks)
}

func (h *AdminHandler) RequeueFailedTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if err := h.queueAdmin.RequeueFailedTask(c.Request.Context(), middleware.IdentityFrom(c), taskID); err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusAccepted, "task requeued", gin.H{"task_id": taskID})
}
