package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"

	"medstay/internal/daterange"
	"medstay/internal/logger"
	"medstay/internal/models"
)

type Config struct {
	Enabled  bool
	Addr     string
	Password string
	TTL      time.Duration
}

// ValkeyClient caches rendered calendar ranges. Every property has a version
// counter; invalidation bumps it so older entries are never read again and
// expire on their own TTL.
type ValkeyClient struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		DisableCache:     true,
		ConnWriteTimeout: 2 * time.Second,
		Dialer:           net.Dialer{Timeout: 5 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ValkeyClient{client: client, ttl: ttl}, nil
}

func versionKey(propertyID int64) string {
	return fmt.Sprintf("medstay:calendar:%d:version", propertyID)
}

func rangeKey(propertyID, version int64, r daterange.Range) string {
	return fmt.Sprintf("medstay:calendar:%d:v%d:%s:%s",
		propertyID, version, daterange.Format(r.Start), daterange.Format(r.End))
}

func (v *ValkeyClient) version(ctx context.Context, propertyID int64) (int64, error) {
	n, err := v.client.Do(ctx, v.client.B().Get().Key(versionKey(propertyID)).Build()).AsInt64()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}
	return n, err
}

// GetRange looks the view up under the property's current version and
// returns that version for a later SetRange.
func (v *ValkeyClient) GetRange(ctx context.Context, propertyID int64, r daterange.Range) (*models.RangeView, int64, bool) {
	ver, err := v.version(ctx, propertyID)
	if err != nil {
		logger.WithContext(ctx).Warn("Calendar cache version lookup failed", "property_id", propertyID, "error", err)
		return nil, -1, false
	}

	raw, err := v.client.Do(ctx, v.client.B().Get().Key(rangeKey(propertyID, ver, r)).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			logger.WithContext(ctx).Warn("Calendar cache read failed", "property_id", propertyID, "error", err)
		}
		return nil, ver, false
	}

	var view models.RangeView
	if err := json.Unmarshal(raw, &view); err != nil {
		logger.WithContext(ctx).Warn("Calendar cache entry is corrupt", "property_id", propertyID, "error", err)
		return nil, ver, false
	}
	return &view, ver, true
}

// SetRange stores the view under the version it was read against. After an
// invalidation that key is never looked up again.
func (v *ValkeyClient) SetRange(ctx context.Context, ver int64, r daterange.Range, view *models.RangeView) {
	if ver < 0 {
		return
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return
	}

	cmd := v.client.B().Set().Key(rangeKey(view.PropertyID, ver, r)).Value(rueidis.BinaryString(raw)).Ex(v.ttl).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		logger.WithContext(ctx).Warn("Calendar cache write failed", "property_id", view.PropertyID, "error", err)
	}
}

func (v *ValkeyClient) Invalidate(ctx context.Context, propertyID int64) {
	if err := v.client.Do(ctx, v.client.B().Incr().Key(versionKey(propertyID)).Build()).Error(); err != nil {
		logger.WithContext(ctx).Error("Calendar cache invalidation failed", "property_id", propertyID, "error", err)
	}
}

func (v *ValkeyClient) HealthCheck(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

func (v *ValkeyClient) Close() error {
	v.client.Close()
	return nil
}
