package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// PassengerForm mirrors entity.PassengerDetails without binding rules:
// empty fields may come from a prefilled profile, the service validates after merging
type PassengerForm struct {
	Name           string           `json:"name"`
	Age            int              `json:"age"`
	Gender         entity.Gender    `json:"gender"`
	PreferredBerth entity.BerthType `json:"preferred_berth"`
}

// PrefillRequest выбирает сохраненного пассажира для подстановки
type PrefillRequest struct {
	ProfileID int64 `json:"profile_id" binding:"required,min=1"`
}

func (h *CheckoutHandler) Start(c *gin.Context) {
	var req service.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.checkoutService.Start(c.Request.Context(), middleware.IdentityFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "checkout started", view)
}

func (h *CheckoutHandler) Get(c *gin.Context) {
	view, err := h.checkoutService.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	h.respond(c, view, err, "checkout retrieved")
}

func (h *CheckoutHandler) ToggleSeat(c *gin.Context) {
	view, err := h.checkoutService.ToggleSeat(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), c.Param("seat_id"))
	h.respond(c, view, err, "seat selection updated")
}

func (h *CheckoutHandler) ProceedToPassengers(c *gin.Context) {
	view, err := h.checkoutService.ProceedToPassengers(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	h.respond(c, view, err, "enter passenger details")
}

func (h *CheckoutHandler) AddPassenger(c *gin.Context) {
	var form PassengerForm
	if err := c.ShouldBindJSON(&form); err != nil {
		bindError(c, err)
		return
	}
	details := entity.PassengerDetails{
		Name:           form.Name,
		Age:            form.Age,
		Gender:         form.Gender,
		PreferredBerth: form.PreferredBerth,
	}

	view, err := h.checkoutService.AddPassenger(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), details)
	h.respond(c, view, err, "passenger added")
}

func (h *CheckoutHandler) RemovePassenger(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid passenger index", Kind: entity.KindValidation})
		return
	}

	view, err := h.checkoutService.RemovePassenger(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), index)
	h.respond(c, view, err, "passenger removed")
}

func (h *CheckoutHandler) Prefill(c *gin.Context) {
	var req PrefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.checkoutService.PrefillFromProfile(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req.ProfileID)
	h.respond(c, view, err, "profile staged for the next passenger")
}

func (h *CheckoutHandler) ProceedToPayment(c *gin.Context) {
	view, err := h.checkoutService.ProceedToPayment(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	h.respond(c, view, err, "review and pay")
}

func (h *CheckoutHandler) Back(c *gin.Context) {
	view, err := h.checkoutService.Back(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	h.respond(c, view, err, "moved back")
}

func (h *CheckoutHandler) Confirm(c *gin.Context) {
	b, err := h.checkoutService.Confirm(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "booking confirmed", b)
}

func (h *CheckoutHandler) Abandon(c *gin.Context) {
	if err := h.checkoutService.Abandon(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "checkout abandoned", nil)
}

func (h *CheckoutHandler) respond(c *gin.Context, view *service.CheckoutView, err error, message string) {
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, message, view)
}
