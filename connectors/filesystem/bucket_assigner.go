package filesystem

import (
	"time"

	"tributary.dev/tributary/rows"
)

// BucketAssigner routes each row to a subdirectory of the sink's base path.
type BucketAssigner interface {
	Bucket(row *rows.Row, now time.Time) string
}

// BasePathBucketAssigner writes every row directly into the base path.
type BasePathBucketAssigner struct{}

func NewBasePathBucketAssigner() BasePathBucketAssigner {
	return BasePathBucketAssigner{}
}

func (BasePathBucketAssigner) Bucket(*rows.Row, time.Time) string { return "" }

var _ BucketAssigner = BasePathBucketAssigner{}

// defaultDateTimeFormat buckets rows by hour.
const defaultDateTimeFormat = "2006-01-02--15"

// DateTimeBucketAssigner buckets rows by the processing time they arrived,
// formatted with a time layout.
type DateTimeBucketAssigner struct {
	// Format is a time layout string. Defaults to hourly buckets like
	// "2025-06-30--14".
	Format string
}

func NewDateTimeBucketAssigner(format string) DateTimeBucketAssigner {
	if format == "" {
		format = defaultDateTimeFormat
	}
	return DateTimeBucketAssigner{Format: format}
}

func (a DateTimeBucketAssigner) Bucket(_ *rows.Row, now time.Time) string {
	return now.Format(a.Format)
}

var _ BucketAssigner = DateTimeBucketAssigner{}
