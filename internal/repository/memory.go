package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"medstay/internal/daterange"
	apperrors "medstay/internal/errors"
	"medstay/internal/metrics"
	"medstay/internal/models"
)

// MemoryStore is a process-local Store used by tests and STORAGE_DRIVER=memory.
// Each property has its own mutex so writes to different properties never
// contend; data access itself is guarded by a single RWMutex.
type MemoryStore struct {
	mu            sync.RWMutex
	properties    map[int64]models.Property
	bookings      map[int64]models.Booking
	overrides     map[int64]map[string]models.CalendarAvailability
	patterns      map[int64]models.RecurringPattern
	nextProperty  int64
	nextBooking   int64
	nextPattern   int64
	propertyLocks sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties: make(map[int64]models.Property),
		bookings:   make(map[int64]models.Booking),
		overrides:  make(map[int64]map[string]models.CalendarAvailability),
		patterns:   make(map[int64]models.RecurringPattern),
	}
}

// AddProperty seeds a property, assigning an id when none is set.
func (m *MemoryStore) AddProperty(p models.Property) models.Property {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		m.nextProperty++
		p.ID = m.nextProperty
	} else if p.ID > m.nextProperty {
		m.nextProperty = p.ID
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.properties[p.ID] = p
	return p
}

func (m *MemoryStore) Properties() PropertyStore       { return memoryProperties{m} }
func (m *MemoryStore) Bookings() BookingStore          { return memoryBookings{m} }
func (m *MemoryStore) Availability() AvailabilityStore { return memoryAvailability{m} }
func (m *MemoryStore) Patterns() PatternStore          { return memoryPatterns{m} }

// LockProperty is not reentrant for the same property.
func (m *MemoryStore) LockProperty(ctx context.Context, propertyID int64, fn func(ctx context.Context, tx Store) error) error {
	value, _ := m.propertyLocks.LoadOrStore(propertyID, &sync.Mutex{})
	lock := value.(*sync.Mutex)

	start := time.Now()
	lock.Lock()
	defer lock.Unlock()
	metrics.PropertyLockWait.Observe(time.Since(start).Seconds())

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m)
}

type memoryProperties struct{ m *MemoryStore }

func (s memoryProperties) GetByID(_ context.Context, id int64) (*models.Property, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	p, ok := s.m.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s memoryProperties) List(_ context.Context) ([]models.Property, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	out := make([]models.Property, 0, len(s.m.properties))
	for _, p := range s.m.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryBookings struct{ m *MemoryStore }

func (s memoryBookings) Create(_ context.Context, booking *models.Booking) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.properties[booking.PropertyID]; !ok {
		return apperrors.NotFound("property %d not found", booking.PropertyID)
	}
	if booking.IdempotencyKey != nil {
		for _, b := range s.m.bookings {
			if b.PropertyID == booking.PropertyID && b.IdempotencyKey != nil && *b.IdempotencyKey == *booking.IdempotencyKey {
				return apperrors.Conflict("duplicate idempotency key")
			}
		}
	}

	s.m.nextBooking++
	now := time.Now().UTC()
	booking.ID = s.m.nextBooking
	booking.CreatedAt = now
	booking.UpdatedAt = now
	s.m.bookings[booking.ID] = *booking
	return nil
}

func (s memoryBookings) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	b, ok := s.m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s memoryBookings) GetByIdempotencyKey(_ context.Context, propertyID int64, key string) (*models.Booking, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, b := range s.m.bookings {
		if b.PropertyID == propertyID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return &b, nil
		}
	}
	return nil, nil
}

func (s memoryBookings) Update(_ context.Context, booking *models.Booking) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.bookings[booking.ID]; !ok {
		return apperrors.NotFound("booking %d not found", booking.ID)
	}
	booking.UpdatedAt = time.Now().UTC()
	s.m.bookings[booking.ID] = *booking
	return nil
}

func (s memoryBookings) Delete(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.bookings, id)
	return nil
}

func (s memoryBookings) FindOverlapping(_ context.Context, propertyID int64, r daterange.Range, excludeID int64) ([]models.Booking, error) {
	return s.filter(func(b *models.Booking) bool {
		return b.PropertyID == propertyID && b.ID != excludeID && b.Status.IsActive() && b.Range().Overlaps(r)
	}, byCheckIn), nil
}

func (s memoryBookings) ListByProperty(_ context.Context, propertyID int64, r daterange.Range) ([]models.Booking, error) {
	return s.filter(func(b *models.Booking) bool {
		return b.PropertyID == propertyID && b.Range().Overlaps(r)
	}, byCheckIn), nil
}

func (s memoryBookings) ListByGuest(_ context.Context, guestID string) ([]models.Booking, error) {
	return s.filter(func(b *models.Booking) bool {
		return b.GuestID == guestID
	}, func(a, b *models.Booking) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func byCheckIn(a, b *models.Booking) bool {
	if a.CheckIn.Equal(b.CheckIn) {
		return a.ID < b.ID
	}
	return a.CheckIn.Before(b.CheckIn)
}

func (s memoryBookings) filter(keep func(*models.Booking) bool, less func(a, b *models.Booking) bool) []models.Booking {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.m.bookings {
		if keep(&b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

type memoryAvailability struct{ m *MemoryStore }

func (s memoryAvailability) ListRange(_ context.Context, propertyID int64, r daterange.Range) ([]models.CalendarAvailability, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []models.CalendarAvailability
	for _, row := range s.m.overrides[propertyID] {
		if r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s memoryAvailability) UpsertMany(_ context.Context, rows []models.CalendarAvailability) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range rows {
		row.Date = daterange.Day(row.Date)
		if row.AppliedAt.IsZero() {
			row.AppliedAt = now
		}
		s.m.propertyOverrides(row.PropertyID)[daterange.Format(row.Date)] = row
	}
	return nil
}

func (s memoryAvailability) UpsertPrices(_ context.Context, rows []models.CalendarAvailability) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range rows {
		key := daterange.Format(row.Date)
		byDate := s.m.propertyOverrides(row.PropertyID)
		existing, ok := byDate[key]
		if !ok {
			existing = models.CalendarAvailability{PropertyID: row.PropertyID, Date: daterange.Day(row.Date)}
		}
		existing.CustomPrice = row.CustomPrice
		existing.AppliedAt = row.AppliedAt
		if existing.AppliedAt.IsZero() {
			existing.AppliedAt = now
		}
		byDate[key] = existing
	}
	return nil
}

func (s memoryAvailability) ClearPatternDates(_ context.Context, propertyID, patternID int64, dates []time.Time) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	byDate := s.m.overrides[propertyID]
	cleared := 0
	for _, d := range dates {
		key := daterange.Format(d)
		if row, ok := byDate[key]; ok && row.PatternID != nil && *row.PatternID == patternID {
			delete(byDate, key)
			cleared++
		}
	}
	return cleared, nil
}

// propertyOverrides must be called with mu held for writing.
func (m *MemoryStore) propertyOverrides(propertyID int64) map[string]models.CalendarAvailability {
	byDate, ok := m.overrides[propertyID]
	if !ok {
		byDate = make(map[string]models.CalendarAvailability)
		m.overrides[propertyID] = byDate
	}
	return byDate
}

type memoryPatterns struct{ m *MemoryStore }

func clonePattern(p models.RecurringPattern) models.RecurringPattern {
	p.DaysOfWeek = append([]int(nil), p.DaysOfWeek...)
	return p
}

func (s memoryPatterns) Create(_ context.Context, pattern *models.RecurringPattern) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.nextPattern++
	now := time.Now().UTC()
	pattern.ID = s.m.nextPattern
	pattern.CreatedAt = now
	pattern.UpdatedAt = now
	s.m.patterns[pattern.ID] = clonePattern(*pattern)
	return nil
}

func (s memoryPatterns) GetByID(_ context.Context, id int64) (*models.RecurringPattern, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	p, ok := s.m.patterns[id]
	if !ok {
		return nil, nil
	}
	p = clonePattern(p)
	return &p, nil
}

func (s memoryPatterns) ListByProperty(_ context.Context, propertyID int64) ([]models.RecurringPattern, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []models.RecurringPattern
	for _, p := range s.m.patterns {
		if p.PropertyID == propertyID {
			out = append(out, clonePattern(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memoryPatterns) Update(_ context.Context, pattern *models.RecurringPattern) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.patterns[pattern.ID]; !ok {
		return apperrors.NotFound("pattern %d not found", pattern.ID)
	}
	pattern.UpdatedAt = time.Now().UTC()
	s.m.patterns[pattern.ID] = clonePattern(*pattern)
	return nil
}

// Delete detaches the pattern from the overrides it produced, mirroring
// ON DELETE SET NULL.
func (s memoryPatterns) Delete(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.patterns, id)
	for _, byDate := range s.m.overrides {
		for key, row := range byDate {
			if row.PatternID != nil && *row.PatternID == id {
				row.PatternID = nil
				byDate[key] = row
			}
		}
	}
	return nil
}

func (s memoryPatterns) MarkApplied(_ context.Context, id int64, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.patterns[id]
	if !ok {
		return apperrors.NotFound("pattern %d not found", id)
	}
	p.LastAppliedAt = &at
	s.m.patterns[id] = p
	return nil
}
