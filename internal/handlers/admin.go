package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medstay/internal/search"
)

// Admin handlers

// DeleteBooking - DELETE /api/admin/bookings/:id
// Административное удаление в обход машины состояний
func (h *Handlers) DeleteBooking(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.services.Bookings.HardDelete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete booking")
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchBookings - GET /api/admin/bookings/search?q&status&property_id&from&to&page&pageSize
func (h *Handlers) SearchBookings(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking search is disabled", "code": "unavailable"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	propertyID, _ := strconv.ParseInt(c.Query("property_id"), 10, 64)

	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1", "code": "validation_error"})
		return
	}

	docs, total, err := h.searcher.SearchBookings(c.Request.Context(), search.BookingQuery{
		Text:       c.Query("q"),
		Status:     c.Query("status"),
		PropertyID: propertyID,
		From:       c.Query("from"),
		To:         c.Query("to"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondError(c, err, "Failed to search bookings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": docs, "total": total, "page": page})
}
