// Package cache is a best-effort key/value gateway. Failures are logged and
// reported as misses so callers fall through to the database.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache stores JSON-encoded values with a TTL.
type Cache interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	// DelPattern removes every key matching a glob pattern such as "actions:*".
	DelPattern(ctx context.Context, pattern string)
}

const (
	DeviceListTTL = 10 * time.Minute
	DeviceTTL     = 15 * time.Minute
	ActionTTL     = 10 * time.Minute
	AnalyticsTTL  = 5 * time.Minute
)

func DeviceListKey(userID uint) string { return fmt.Sprintf("devices:%d", userID) }
func DeviceKey(deviceID uint) string   { return fmt.Sprintf("device:%d", deviceID) }

const (
	ActionListKey  = "actions:list"
	ActionsPattern = "actions:*"
)

func ActionKey(actionID uint) string { return fmt.Sprintf("actions:item:%d", actionID) }

func AnalyticsKey(kind string, userID uint, days int) string {
	return fmt.Sprintf("analytics:%s:%d:%d", kind, userID, days)
}
