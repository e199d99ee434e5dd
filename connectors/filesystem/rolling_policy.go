package filesystem

import (
	"time"

	"tributary.dev/tributary/util/size"
)

// PartFileInfo describes an open part file for rolling decisions.
type PartFileInfo struct {
	// Size is the number of bytes buffered so far. Formats that only
	// produce bytes when the file is finalized report the bytes staged
	// by the last flush.
	Size int64

	CreatedAt   time.Time
	LastWriteAt time.Time
}

// RollingPolicy decides when an open part file is finalized and made
// visible to readers.
type RollingPolicy interface {
	// ShouldRollOnEvent runs after each row is written.
	ShouldRollOnEvent(part PartFileInfo) bool

	// ShouldRollOnProcessingTime runs periodically on the sink's clock.
	ShouldRollOnProcessingTime(part PartFileInfo, now time.Time) bool

	// ShouldRollOnCheckpoint runs when the sink takes a checkpoint.
	ShouldRollOnCheckpoint(part PartFileInfo) bool
}

// OnCheckpointRollingPolicy finalizes part files only on checkpoints. This
// is the policy to use with bulk formats like Parquet where a file's
// footer is written once.
type OnCheckpointRollingPolicy struct{}

func NewOnCheckpointRollingPolicy() OnCheckpointRollingPolicy {
	return OnCheckpointRollingPolicy{}
}

func (OnCheckpointRollingPolicy) ShouldRollOnEvent(PartFileInfo) bool { return false }

func (OnCheckpointRollingPolicy) ShouldRollOnProcessingTime(PartFileInfo, time.Time) bool {
	return false
}

func (OnCheckpointRollingPolicy) ShouldRollOnCheckpoint(PartFileInfo) bool { return true }

var _ RollingPolicy = OnCheckpointRollingPolicy{}

// DefaultRollingPolicy finalizes a part file when it grows past a maximum
// size, has been open longer than the rollover interval, or has not been
// written to for the inactivity interval.
type DefaultRollingPolicy struct {
	MaxPartSize        int64
	RolloverInterval   time.Duration
	InactivityInterval time.Duration
}

func NewDefaultRollingPolicy() DefaultRollingPolicy {
	return DefaultRollingPolicy{
		MaxPartSize:        128 * size.MB,
		RolloverInterval:   time.Minute,
		InactivityInterval: time.Minute,
	}
}

func (p DefaultRollingPolicy) ShouldRollOnEvent(part PartFileInfo) bool {
	return part.Size >= p.MaxPartSize
}

func (p DefaultRollingPolicy) ShouldRollOnProcessingTime(part PartFileInfo, now time.Time) bool {
	if now.Sub(part.CreatedAt) >= p.RolloverInterval {
		return true
	}
	return now.Sub(part.LastWriteAt) >= p.InactivityInterval
}

func (p DefaultRollingPolicy) ShouldRollOnCheckpoint(part PartFileInfo) bool { return true }

var _ RollingPolicy = DefaultRollingPolicy{}
