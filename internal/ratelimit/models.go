// Package ratelimit enforces per-user, per-action sliding-window caps on
// verification attempts. Check and record are a single atomic step so that
// concurrent requests cannot both slip under the cap.
package ratelimit

import (
	"strings"
	"time"
)

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)

// Denial reasons, stable strings surfaced to clients and audit.
const (
	ReasonHourlyLimitExceeded = "hourly_limit_exceeded"
	ReasonDailyLimitExceeded  = "daily_limit_exceeded"
)

// Limits holds the attempt caps for one action.
type Limits struct {
	HourlyCap int
	DailyCap  int
}

// Decision is the outcome of a CheckAndRecord call. When Allowed is false,
// Reason names the exhausted window and ResetAt is the earliest instant a
// retry could succeed.
type Decision struct {
	Allowed         bool      `json:"allowed"`
	Reason          string    `json:"reason,omitempty"`
	RemainingHourly int       `json:"remainingHourly"`
	RemainingDaily  int       `json:"remainingDaily"`
	ResetAt         time.Time `json:"resetAt,omitempty"`
}

// SanitizeKey normalizes a user or action identifier for use as a window key.
// Separator characters are rewritten so distinct (user, action) pairs can
// never produce the same composite key.
func SanitizeKey(part string) string {
	part = strings.TrimSpace(strings.ToLower(part))
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(part)
}

// WindowKey derives the composite key for one user and action.
func WindowKey(userID, action string) string {
	return SanitizeKey(userID) + ":" + SanitizeKey(action)
}
