package transport

import (
	"net/http"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var details entity.PassengerDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		bindError(c, err)
		return
	}

	profile, err := h.profileService.CreateProfile(c.Request.Context(), middleware.IdentityFrom(c), details)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "passenger saved", profile)
}

func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	profiles, err := h.profileService.ListProfiles(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "saved passengers", profiles)
}

func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.profileService.DeleteProfile(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "passenger deleted", nil)
}
