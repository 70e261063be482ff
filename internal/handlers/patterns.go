package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medstay/internal/models"
)

// Recurring patterns handlers

// ListPatterns - GET /api/properties/:id/recurring-patterns
func (h *Handlers) ListPatterns(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	patterns, err := h.services.Patterns.List(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, err, "Failed to list patterns")
		return
	}

	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

// CreatePattern - POST /api/properties/:id/recurring-patterns
// Создать шаблон и сразу материализовать его в календарь
func (h *Handlers) CreatePattern(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req models.RecurringPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.services.Patterns.Create(c.Request.Context(), propertyID, &req)
	if err != nil {
		respondError(c, err, "Failed to create pattern")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// UpdatePattern - PUT /api/properties/:id/recurring-patterns/:patternId
func (h *Handlers) UpdatePattern(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	patternID, ok := int64Param(c, "patternId")
	if !ok {
		return
	}

	var req models.RecurringPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.services.Patterns.Update(c.Request.Context(), propertyID, patternID, &req)
	if err != nil {
		respondError(c, err, "Failed to update pattern")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ApplyPattern - POST /api/properties/:id/recurring-patterns/:patternId/apply
// Повторно применить шаблон (он становится самым свежим)
func (h *Handlers) ApplyPattern(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	patternID, ok := int64Param(c, "patternId")
	if !ok {
		return
	}

	resp, err := h.services.Patterns.Apply(c.Request.Context(), propertyID, patternID)
	if err != nil {
		respondError(c, err, "Failed to apply pattern")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeletePattern - DELETE /api/properties/:id/recurring-patterns/:patternId?clear=true
func (h *Handlers) DeletePattern(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	patternID, ok := int64Param(c, "patternId")
	if !ok {
		return
	}

	clearDates, _ := strconv.ParseBool(c.DefaultQuery("clear", "false"))

	cleared, err := h.services.Patterns.Delete(c.Request.Context(), propertyID, patternID, clearDates)
	if err != nil {
		respondError(c, err, "Failed to delete pattern")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pattern_id": patternID, "dates_cleared": cleared})
}
