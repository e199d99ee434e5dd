package config

import (
	"github.com/goccy/go-json"
)

// jobDocument is the JSON shape of a job configuration file.
type jobDocument struct {
	Job    jobSection     `json:"job"`
	Source *sourceSection `json:"source"`
	Sink   *sinkSection   `json:"sink"`
}

type jobSection struct {
	WorkerCount            int    `json:"workerCount"`
	WorkingStorageLocation string `json:"workingStorageLocation"`
}

type sourceSection struct {
	Type            string        `json:"type"`
	Directory       string        `json:"directory"`
	Unbounded       bool          `json:"unbounded"`
	MonitorInterval string        `json:"monitorInterval"`
	Format          FormatSection `json:"format"`
}

type sinkSection struct {
	Type           string                 `json:"type"`
	Directory      string                 `json:"directory"`
	Format         FormatSection          `json:"format"`
	RollingPolicy  *rollingPolicySection  `json:"rollingPolicy"`
	BucketAssigner *bucketAssignerSection `json:"bucketAssigner"`
	PartPrefix     string                 `json:"partPrefix"`
	PartSuffix     string                 `json:"partSuffix"`
}

// FormatSection configures one of the record formats. The type field picks
// the format and the other fields apply to specific formats.
type FormatSection struct {
	Type string `json:"type"`

	// CSV and Parquet column declarations
	Columns []ColumnSection `json:"columns"`

	// CSV dialect
	ColumnSeparator string `json:"columnSeparator"`
	QuoteChar       string `json:"quoteChar"`
	EscapeChar      string `json:"escapeChar"`
	AllowComments   bool   `json:"allowComments"`
	UseHeader       bool   `json:"useHeader"`
	StrictHeaders   bool   `json:"strictHeaders"`

	// Avro record schema, also usable for Parquet writing
	Schema json.RawMessage `json:"schema"`

	// Parquet read batch size
	BatchSize int `json:"batchSize"`
}

type ColumnSection struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// Element is the element type of array and map columns.
	Element string `json:"element"`

	// Separator splits array elements in CSV cells.
	Separator string `json:"separator"`
}

type rollingPolicySection struct {
	Type               string `json:"type"`
	MaxPartSize        int64  `json:"maxPartSize"`
	RolloverInterval   string `json:"rolloverInterval"`
	InactivityInterval string `json:"inactivityInterval"`
}

type bucketAssignerSection struct {
	Type   string `json:"type"`
	Format string `json:"format"`
}
