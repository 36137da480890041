package transport

import (
	"fmt"
	"net/http"

	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// ListBookings обрабатывает GET /bookings?status=&limit=&offset=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var req service.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), middleware.IdentityFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "bookings retrieved successfully",
		Data:    bookings,
		Meta: map[string]interface{}{
			"count":  len(bookings),
			"limit":  req.Limit,
			"offset": req.Offset,
			"status": req.Status,
		},
	})
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.bookingService.GetBooking(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "booking retrieved successfully", b)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	b, err := h.bookingService.CancelBooking(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "booking cancelled", b)
}

// DownloadTicket отдает PDF билета
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	pdf, name, err := h.bookingService.ExportTicket(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *BookingHandler) GetStats(c *gin.Context) {
	stats, err := h.bookingService.GetStats(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "booking stats retrieved successfully",
		Data:    stats,
		Meta: map[string]interface{}{
			"cancellation_rate": stats.CancellationRate(),
		},
	})
}
