package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/middleware"
	"medstay/internal/models"
	"medstay/internal/service"
)

// Calendar handlers

// GetAvailability - GET /api/properties/:id/availability?from&to
// Календарь объекта за период [from, to)
func (h *Handlers) GetAvailability(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	r, err := service.ParseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err, "Invalid range")
		return
	}

	view, err := h.services.Calendar.RangeView(c.Request.Context(), propertyID, r)
	if err != nil {
		respondError(c, err, "Failed to build calendar")
		return
	}

	if middleware.RoleFromContext(c) == middleware.RoleGuest {
		view = withoutBookingIDs(view)
	}
	c.JSON(http.StatusOK, view)
}

// GetDayAvailability - GET /api/properties/:id/availability/:date
func (h *Handlers) GetDayAvailability(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	date, err := daterange.ParseDate(c.Param("date"))
	if err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.services.Calendar.DayView(c.Request.Context(), propertyID, date)
	if err != nil {
		respondError(c, err, "Failed to build calendar")
		return
	}

	if middleware.RoleFromContext(c) == middleware.RoleGuest {
		day := *view
		day.BookingID = nil
		view = &day
	}
	c.JSON(http.StatusOK, view)
}

// withoutBookingIDs копирует календарь без ссылок на чужие брони.
// Закэшированный view не изменяется.
func withoutBookingIDs(view *models.RangeView) *models.RangeView {
	out := *view
	out.Days = make([]models.DayView, len(view.Days))
	for i, d := range view.Days {
		d.BookingID = nil
		out.Days[i] = d
	}
	return &out
}

// UpsertAvailability - PUT /api/properties/:id/availability
// Явные переопределения доступности и цены по датам
func (h *Handlers) UpsertAvailability(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req models.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	written, err := h.services.Availability.Upsert(c.Request.Context(), propertyID, req.Overrides)
	if err != nil {
		respondError(c, err, "Failed to update availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{"property_id": propertyID, "dates_written": written})
}

// GetQuote - GET /api/properties/:id/quote?check_in&check_out
// Предварительный расчет стоимости
func (h *Handlers) GetQuote(c *gin.Context) {
	propertyID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	r, err := service.ParseRange(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		respondError(c, err, "Invalid stay")
		return
	}

	quote, err := h.services.Pricing.Quote(c.Request.Context(), propertyID, r.Start, r.End)
	if err != nil {
		respondError(c, err, "Failed to price stay")
		return
	}

	c.JSON(http.StatusOK, quote)
}

// GetPortfolioCalendar - GET /api/calendar?property_ids=1,2&from&to
// Календарь нескольких объектов
func (h *Handlers) GetPortfolioCalendar(c *gin.Context) {
	ids, err := parseIDList(c.Query("property_ids"))
	if err != nil {
		respondError(c, err, "Invalid property_ids")
		return
	}

	r, err := service.ParseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err, "Invalid range")
		return
	}

	views, err := h.services.Calendar.MultiPropertyView(c.Request.Context(), ids, r)
	if err != nil {
		respondError(c, err, "Failed to build calendar")
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": views})
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperrors.Validation("invalid property id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
