package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"medstay/internal/daterange"
	"medstay/internal/models"
)

// SmokeValidator - проверка развернутого API на живом сценарии бронирования
type SmokeValidator struct {
	baseURL    string
	propertyID int64
	guestID    string
	token      string
	start      time.Time
	client     *http.Client
}

type Option func(*SmokeValidator)

// WithToken отправляет bearer токен вместо заголовков разработки
func WithToken(token string) Option {
	return func(v *SmokeValidator) { v.token = token }
}

// WithStart задает первую ночь тестовой брони
func WithStart(start time.Time) Option {
	return func(v *SmokeValidator) { v.start = daterange.Day(start) }
}

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(baseURL string, propertyID int64, opts ...Option) *SmokeValidator {
	v := &SmokeValidator{
		baseURL:    baseURL,
		propertyID: propertyID,
		guestID:    "smoke-" + time.Now().UTC().Format("20060102150405"),
		start:      daterange.Day(time.Now()).AddDate(1, 0, 0),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAll прогоняет сценарий: здоровье, цена, бронь, конфликт, отмена
func (v *SmokeValidator) ValidateAll() error {
	slog.Info("Starting API smoke validation", "base_url", v.baseURL, "property_id", v.propertyID)

	if err := v.validateHealth(); err != nil {
		return fmt.Errorf("health validation failed: %w", err)
	}

	if err := v.validateCalendar(); err != nil {
		return fmt.Errorf("calendar validation failed: %w", err)
	}

	if err := v.validateBookingLifecycle(); err != nil {
		return fmt.Errorf("booking validation failed: %w", err)
	}

	slog.Info("All smoke checks passed")
	return nil
}

func (v *SmokeValidator) validateHealth() error {
	resp, err := v.makeRequest(http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /health: expected 200, got %d", resp.StatusCode)
	}
	return nil
}

func (v *SmokeValidator) validateCalendar() error {
	from, to := daterange.Format(v.start), daterange.Format(v.start.AddDate(0, 0, 3))

	var quote models.QuoteResponse
	path := fmt.Sprintf("/api/properties/%d/quote?check_in=%s&check_out=%s", v.propertyID, from, to)
	if err := v.expect(http.MethodGet, path, nil, http.StatusOK, &quote); err != nil {
		return err
	}
	if quote.Nights != 3 || len(quote.Nightly) != 3 {
		return fmt.Errorf("GET %s: expected 3 nights, got %d", path, quote.Nights)
	}

	var sum float64
	for _, n := range quote.Nightly {
		sum += n.Price
	}
	if diff := sum - quote.Total; diff > 0.005 || diff < -0.005 {
		return fmt.Errorf("GET %s: total %.2f is not the sum of nights %.2f", path, quote.Total, sum)
	}

	var view models.RangeView
	path = fmt.Sprintf("/api/properties/%d/availability?from=%s&to=%s", v.propertyID, from, to)
	if err := v.expect(http.MethodGet, path, nil, http.StatusOK, &view); err != nil {
		return err
	}
	if len(view.Days) != 3 {
		return fmt.Errorf("GET %s: expected 3 days, got %d", path, len(view.Days))
	}

	slog.Info("Calendar endpoints are valid")
	return nil
}

func (v *SmokeValidator) validateBookingLifecycle() error {
	checkIn := v.start.AddDate(0, 0, 10)
	req := models.CreateBookingRequest{
		PropertyID: v.propertyID,
		CheckIn:    daterange.Format(checkIn),
		CheckOut:   daterange.Format(checkIn.AddDate(0, 0, 2)),
		GuestCount: 1,
		GuestName:  "Smoke Test",
		GuestEmail: "smoke@example.com",
	}

	var booking models.Booking
	if err := v.expect(http.MethodPost, "/api/bookings", req, http.StatusCreated, &booking); err != nil {
		return err
	}
	if booking.ID == 0 || booking.Status != models.StatusPending {
		return fmt.Errorf("POST /api/bookings: expected a pending booking, got id=%d status=%s", booking.ID, booking.Status)
	}

	// Пересекающаяся бронь обязана получить 409
	overlap := req
	overlap.CheckIn = daterange.Format(checkIn.AddDate(0, 0, 1))
	overlap.CheckOut = daterange.Format(checkIn.AddDate(0, 0, 3))
	if err := v.expect(http.MethodPost, "/api/bookings", overlap, http.StatusConflict, nil); err != nil {
		return err
	}

	cancelPath := fmt.Sprintf("/api/bookings/%d/cancel", booking.ID)
	cancel := models.CancelBookingRequest{Reason: "smoke validation"}
	if err := v.expect(http.MethodPost, cancelPath, cancel, http.StatusOK, nil); err != nil {
		return err
	}
	if err := v.expect(http.MethodPost, cancelPath, cancel, http.StatusUnprocessableEntity, nil); err != nil {
		return err
	}

	slog.Info("Booking endpoints are valid", "booking_id", booking.ID)
	return nil
}

// expect выполняет запрос, сверяет статус и при необходимости декодирует тело
func (v *SmokeValidator) expect(method, path string, body interface{}, status int, out interface{}) error {
	resp, err := v.makeRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		return fmt.Errorf("%s %s: expected %d, got %d", method, path, status, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (v *SmokeValidator) makeRequest(method, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequest(method, v.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	} else {
		req.Header.Set("X-Guest-ID", v.guestID)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	return resp, nil
}
