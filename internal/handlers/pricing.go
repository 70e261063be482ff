package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medstay/internal/models"
)

// RunDynamicPricing - POST /api/properties/:id/dynamic-pricing
// Сгенерировать цены; с apply=true они записываются в календарь
func (h *Handlers) RunDynamicPricing(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req models.DynamicPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.services.DynamicPricing.Run(c.Request.Context(), propertyID, &req)
	if err != nil {
		respondError(c, err, "Failed to generate prices")
		return
	}

	c.JSON(http.StatusOK, resp)
}
