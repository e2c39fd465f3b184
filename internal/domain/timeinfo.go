package domain

import (
	"time"

	"github.com/lherron/vaultq/internal/clock"
)

// TimeInfo is the timestamp bundle attached to every group and entry.
// All times are UTC. Timestamps are kept at native precision in memory and
// compared at serialized (second) precision during merge.
type TimeInfo struct {
	CreationTime         time.Time
	LastModificationTime time.Time
	LastAccessTime       time.Time
	ExpiryTime           time.Time
	LocationChanged      time.Time
	Expires              bool
	UsageCount           int
}

// NewTimeInfo returns a TimeInfo with every timestamp set to the current time.
func NewTimeInfo() TimeInfo {
	now := clock.Now()
	return TimeInfo{
		CreationTime:         now,
		LastModificationTime: now,
		LastAccessTime:       now,
		ExpiryTime:           now,
		LocationChanged:      now,
	}
}

// Equals reports whether two TimeInfo values match under the given compare
// options. Access time and usage count are bookkeeping statistics and are
// ignored when CompareIgnoreStatistics is set.
func (t TimeInfo) Equals(other TimeInfo, options CompareOptions) bool {
	if !timeEqual(t.CreationTime, other.CreationTime, options) {
		return false
	}
	if !timeEqual(t.LastModificationTime, other.LastModificationTime, options) {
		return false
	}
	if !timeEqual(t.ExpiryTime, other.ExpiryTime, options) {
		return false
	}
	if t.Expires != other.Expires {
		return false
	}
	if options&CompareIgnoreLocation == 0 {
		if !timeEqual(t.LocationChanged, other.LocationChanged, options) {
			return false
		}
	}
	if options&CompareIgnoreStatistics == 0 {
		if !timeEqual(t.LastAccessTime, other.LastAccessTime, options) {
			return false
		}
		if t.UsageCount != other.UsageCount {
			return false
		}
	}
	return true
}

func timeEqual(a, b time.Time, options CompareOptions) bool {
	if options&CompareIgnoreMilliseconds != 0 {
		return clock.SerializedEqual(a, b)
	}
	return a.Equal(b)
}
