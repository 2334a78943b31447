// Package ratelimit paces outbound Shopify Admin API calls.
//
// Two mechanisms cooperate: a Pacer enforces a fixed minimum interval between
// calls, and a Tracker follows the X-Shopify-Shop-Api-Call-Limit response
// header ("used/size" of the shop's leaky bucket) and delays requests when the
// bucket is close to full.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderCallLimit is the response header carrying the bucket state.
const HeaderCallLimit = "X-Shopify-Shop-Api-Call-Limit"

// LeakRate is how many calls per second the REST bucket drains.
const LeakRate = 2

// Thresholds for delay decisions.
const (
	// CriticalHeadroom is the free capacity below which requests wait for
	// the bucket to drain.
	CriticalHeadroom = 2

	// WarningUsage is the used/size ratio at which requests are throttled.
	WarningUsage = 0.8

	// ThrottleDelay is applied to each request while in the warning band.
	ThrottleDelay = 1 * time.Second
)

// CallLimitState is the last observed state of the shop's call bucket.
type CallLimitState struct {
	// Used is the number of calls currently in the bucket.
	Used int `json:"used"`

	// Size is the bucket capacity.
	Size int `json:"size"`

	// LastUpdate is when the state was observed.
	LastUpdate time.Time `json:"last_update"`
}

// ParseCallLimit parses a header value such as "32/40".
func ParseCallLimit(value string) (*CallLimitState, error) {
	usedStr, sizeStr, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return nil, fmt.Errorf("parse %s %q: missing '/'", HeaderCallLimit, value)
	}
	used, err := strconv.Atoi(strings.TrimSpace(usedStr))
	if err != nil {
		return nil, fmt.Errorf("parse %s used: %w", HeaderCallLimit, err)
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
	if err != nil {
		return nil, fmt.Errorf("parse %s size: %w", HeaderCallLimit, err)
	}
	if size <= 0 || used < 0 {
		return nil, fmt.Errorf("parse %s %q: out of range", HeaderCallLimit, value)
	}
	return &CallLimitState{Used: used, Size: size}, nil
}

// Headroom returns the remaining capacity, accounting for calls that have
// leaked out since LastUpdate.
func (s *CallLimitState) Headroom(now time.Time) int {
	return s.Size - s.usedAt(now)
}

// NeedsCriticalWait returns true if fewer than CriticalHeadroom calls remain.
func (s *CallLimitState) NeedsCriticalWait(now time.Time) bool {
	return s.Headroom(now) < CriticalHeadroom
}

// NeedsThrottling returns true in the warning band.
func (s *CallLimitState) NeedsThrottling(now time.Time) bool {
	if s.Size <= 0 || s.NeedsCriticalWait(now) {
		return false
	}
	return float64(s.usedAt(now))/float64(s.Size) >= WarningUsage
}

// TimeUntilHeadroom returns how long until CriticalHeadroom calls are free.
func (s *CallLimitState) TimeUntilHeadroom(now time.Time) time.Duration {
	missing := CriticalHeadroom - s.Headroom(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing) * time.Second / LeakRate
}

// Delay returns how long a request issued at now should wait.
func (s *CallLimitState) Delay(now time.Time) time.Duration {
	switch {
	case s.NeedsCriticalWait(now):
		return s.TimeUntilHeadroom(now)
	case s.NeedsThrottling(now):
		return ThrottleDelay
	default:
		return 0
	}
}

func (s *CallLimitState) usedAt(now time.Time) int {
	if s.LastUpdate.IsZero() {
		return s.Used
	}
	leaked := int(now.Sub(s.LastUpdate).Seconds() * LeakRate)
	if leaked <= 0 {
		return s.Used
	}
	if leaked >= s.Used {
		return 0
	}
	return s.Used - leaked
}
