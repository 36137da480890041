package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
}

func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// SearchTrains обрабатывает GET /trains?from=&to=&class=&date=
func (h *CatalogHandler) SearchTrains(c *gin.Context) {
	var req entity.TrainSearch
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	trains, err := h.catalogService.SearchTrains(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "trains retrieved successfully",
		Data:    trains,
		Meta: map[string]interface{}{
			"count": len(trains),
		},
	})
}

func (h *CatalogHandler) GetTrain(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	train, err := h.catalogService.GetTrain(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "train retrieved successfully", train)
}

// GetLayout обрабатывает GET /trains/:id/layout?class=&date=
func (h *CatalogHandler) GetLayout(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	layout, err := h.catalogService.GetLayout(c.Request.Context(), id, c.Query("class"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "seat layout generated", layout)
}

func (h *CatalogHandler) ListClasses(c *gin.Context) {
	success(c, http.StatusOK, "fare classes", h.catalogService.ListClasses())
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "invalid " + name,
			Kind:    entity.KindValidation,
		})
		return 0, false
	}
	return id, true
}
