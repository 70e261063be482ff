package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "medstay/internal/errors"
	"medstay/internal/middleware"
	"medstay/internal/models"
	"medstay/internal/service"
)

// Bookings handlers

// CreateBooking - POST /api/bookings
// Создать бронирование
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	// Гость бронирует только от своего имени
	guestID, _ := middleware.GuestIDFromContext(c)
	if req.GuestID == "" || middleware.RoleFromContext(c) == middleware.RoleGuest {
		req.GuestID = guestID
	}

	booking, err := h.services.Bookings.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create booking")
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListBookings - GET /api/bookings
// Бронирования текущего гостя
func (h *Handlers) ListBookings(c *gin.Context) {
	guestID, _ := middleware.GuestIDFromContext(c)

	bookings, err := h.services.Bookings.ListByGuest(c.Request.Context(), guestID)
	if err != nil {
		respondError(c, err, "Failed to list bookings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdateBooking - PATCH /api/bookings/:id
// Изменить даты, число гостей или контакты
func (h *Handlers) UpdateBooking(c *gin.Context) {
	existing, ok := h.loadBooking(c)
	if !ok {
		return
	}

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.services.Bookings.Update(c.Request.Context(), existing.ID, &req)
	if err != nil {
		respondError(c, err, "Failed to update booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking - POST /api/bookings/:id/cancel
// Отменить бронирование
func (h *Handlers) CancelBooking(c *gin.Context) {
	existing, ok := h.loadBooking(c)
	if !ok {
		return
	}

	// Тело необязательно
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	booking, err := h.services.Bookings.Cancel(c.Request.Context(), existing.ID, req.Reason)
	if err != nil {
		respondError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ConfirmBooking - POST /api/bookings/:id/confirm
func (h *Handlers) ConfirmBooking(c *gin.Context) {
	h.transition(c, models.StatusConfirmed)
}

// CheckInBooking - POST /api/bookings/:id/check-in
func (h *Handlers) CheckInBooking(c *gin.Context) {
	h.transition(c, models.StatusCheckedIn)
}

// CheckOutBooking - POST /api/bookings/:id/check-out
func (h *Handlers) CheckOutBooking(c *gin.Context) {
	h.transition(c, models.StatusCheckedOut)
}

func (h *Handlers) transition(c *gin.Context, to models.BookingStatus) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	booking, err := h.services.Bookings.Transition(c.Request.Context(), id, to)
	if err != nil {
		respondError(c, err, "Failed to change booking status")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListPropertyBookings - GET /api/properties/:id/bookings?from&to
func (h *Handlers) ListPropertyBookings(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	r, err := service.ParseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err, "Invalid range")
		return
	}

	bookings, err := h.services.Bookings.ListByProperty(c.Request.Context(), propertyID, r)
	if err != nil {
		respondError(c, err, "Failed to list bookings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// loadBooking fetches the booking from the path. Guests only see their own
// bookings; anyone else's is reported as missing.
func (h *Handlers) loadBooking(c *gin.Context) (*models.Booking, bool) {
	id, ok := int64Param(c, "id")
	if !ok {
		return nil, false
	}

	booking, err := h.services.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get booking")
		return nil, false
	}

	if middleware.RoleFromContext(c) == middleware.RoleGuest {
		guestID, _ := middleware.GuestIDFromContext(c)
		if booking.GuestID != guestID {
			respondError(c, apperrors.NotFound("booking %d not found", id), "")
			return nil, false
		}
	}

	return booking, true
}
