package handlers

import (
	"context"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "medstay/internal/errors"
	"medstay/internal/logger"
	"medstay/internal/search"
	"medstay/internal/service"
)

// BookingSearcher is the read side of the booking search index.
type BookingSearcher interface {
	SearchBookings(ctx context.Context, q search.BookingQuery) ([]search.BookingDocument, int64, error)
}

type Handlers struct {
	services *service.Services
	searcher BookingSearcher
}

// NewHandlers wires HTTP handlers to the services. searcher may be nil when
// the search index is disabled.
func NewHandlers(services *service.Services, searcher BookingSearcher) *Handlers {
	return &Handlers{
		services: services,
		searcher: searcher,
	}
}

// RegisterValidators добавляет собственные правила в валидатор gin
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("weekdays", validWeekdays)
}

// validWeekdays accepts a slice of ints in 0 (Sunday) .. 6 (Saturday).
func validWeekdays(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < field.Len(); i++ {
		elem := field.Index(i)
		switch elem.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if d := elem.Int(); d < 0 || d > 6 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindBookingConflict:
		return http.StatusConflict
	case apperrors.KindInvalidTransition, apperrors.KindAlreadyFinalized, apperrors.KindTooLateToCancel:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a domain error to its HTTP status. Persistence and
// unknown failures are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error, msg string) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		_ = c.Error(err)
		if kind == "" {
			kind = apperrors.KindPersistence
		}
		c.JSON(status, gin.H{"error": msg, "code": kind})
		return
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.KindValidation})
}

// int64Param reads a positive numeric path parameter and answers 400 otherwise.
func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": apperrors.KindValidation})
		return 0, false
	}
	return id, true
}
