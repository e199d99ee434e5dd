package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/connectors/filesystem"
	"tributary.dev/tributary/formats"
	avroformat "tributary.dev/tributary/formats/avro"
	csvformat "tributary.dev/tributary/formats/csv"
	parquetformat "tributary.dev/tributary/formats/parquet"
	"tributary.dev/tributary/rows"
)

// Unmarshal parses a JSON job document into a Config, resolving ${name}
// parameter references against the given params.
func Unmarshal(data []byte, params *Params) (*Config, error) {
	var doc jobDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid config document format: %v", err)
	}

	if params == nil {
		params = NewParams()
	}
	if err := resolveVars(reflect.ValueOf(&doc), params); err != nil {
		return nil, fmt.Errorf("failed to resolve parameters: %w", err)
	}

	config := &Config{
		WorkerCount:            doc.Job.WorkerCount,
		WorkingStorageLocation: doc.Job.WorkingStorageLocation,
	}
	if config.WorkerCount == 0 {
		config.WorkerCount = 1
	}

	if doc.Source != nil {
		source, err := sourceFromDocument(doc.Source)
		if err != nil {
			return nil, err
		}
		config.Source = source
	}
	if doc.Sink != nil {
		sink, err := sinkFromDocument(doc.Sink)
		if err != nil {
			return nil, err
		}
		config.Sink = sink
	}

	return config, nil
}

func sourceFromDocument(doc *sourceSection) (connectors.SourceConfig, error) {
	switch doc.Type {
	case "", "filesystem":
		format, err := ReaderFormat(doc.Format)
		if err != nil {
			return nil, err
		}

		var monitorInterval time.Duration
		if doc.MonitorInterval != "" {
			monitorInterval, err = time.ParseDuration(doc.MonitorInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid monitorInterval: %w", err)
			}
		}

		return filesystem.SourceConfig{
			Directory:       doc.Directory,
			Format:          format,
			Unbounded:       doc.Unbounded,
			MonitorInterval: monitorInterval,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", doc.Type)
	}
}

func sinkFromDocument(doc *sinkSection) (connectors.SinkConfig, error) {
	switch doc.Type {
	case "", "filesystem":
		factory, err := WriterFactory(doc.Format)
		if err != nil {
			return nil, err
		}

		policy, err := rollingPolicyFromDocument(doc.RollingPolicy)
		if err != nil {
			return nil, err
		}
		assigner, err := bucketAssignerFromDocument(doc.BucketAssigner)
		if err != nil {
			return nil, err
		}

		return filesystem.SinkConfig{
			Directory:      doc.Directory,
			WriterFactory:  factory,
			RollingPolicy:  policy,
			BucketAssigner: assigner,
			PartPrefix:     doc.PartPrefix,
			PartSuffix:     doc.PartSuffix,
		}, nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", doc.Type)
	}
}

// ReaderFormat builds the record format that decodes source files.
func ReaderFormat(doc FormatSection) (formats.RecordFormat, error) {
	switch doc.Type {
	case "csv":
		schema, err := csvSchemaFromDocument(doc)
		if err != nil {
			return nil, err
		}
		return csvformat.NewReaderFormat(schema), nil
	case "avro":
		schema, err := avroformat.ParseSchema(string(doc.Schema))
		if err != nil {
			return nil, err
		}
		return avroformat.NewInputFormat(schema), nil
	case "parquet":
		if len(doc.Columns) == 0 {
			return parquetformat.NewRowReaderFormat(), nil
		}
		rowType, err := rowTypeFromColumns(doc.Columns)
		if err != nil {
			return nil, err
		}
		format, err := parquetformat.NewColumnarFormat(rowType, doc.BatchSize)
		if err != nil {
			return nil, err
		}
		return format, nil
	default:
		return nil, fmt.Errorf("unknown format type %q", doc.Type)
	}
}

// WriterFactory builds the bulk writer factory that encodes sink files.
func WriterFactory(doc FormatSection) (formats.BulkWriterFactory, error) {
	switch doc.Type {
	case "csv":
		schema, err := csvSchemaFromDocument(doc)
		if err != nil {
			return nil, err
		}
		return csvformat.NewBulkWriterFactory(schema), nil
	case "avro":
		schema, err := avroformat.ParseSchema(string(doc.Schema))
		if err != nil {
			return nil, err
		}
		return avroformat.NewBulkWriterFactory(schema), nil
	case "parquet":
		if len(doc.Schema) != 0 {
			schema, err := avroformat.ParseSchema(string(doc.Schema))
			if err != nil {
				return nil, err
			}
			factory, err := parquetformat.NewBulkWriterFactoryForAvro(schema)
			if err != nil {
				return nil, err
			}
			return factory, nil
		}
		rowType, err := rowTypeFromColumns(doc.Columns)
		if err != nil {
			return nil, err
		}
		return parquetformat.NewBulkWriterFactory(rowType), nil
	default:
		return nil, fmt.Errorf("unknown format type %q", doc.Type)
	}
}

func rollingPolicyFromDocument(doc *rollingPolicySection) (filesystem.RollingPolicy, error) {
	if doc == nil {
		return nil, nil
	}
	switch doc.Type {
	case "onCheckpoint":
		return filesystem.NewOnCheckpointRollingPolicy(), nil
	case "default":
		policy := filesystem.NewDefaultRollingPolicy()
		if doc.MaxPartSize > 0 {
			policy.MaxPartSize = doc.MaxPartSize
		}
		if doc.RolloverInterval != "" {
			d, err := time.ParseDuration(doc.RolloverInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid rolloverInterval: %w", err)
			}
			policy.RolloverInterval = d
		}
		if doc.InactivityInterval != "" {
			d, err := time.ParseDuration(doc.InactivityInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid inactivityInterval: %w", err)
			}
			policy.InactivityInterval = d
		}
		return policy, nil
	default:
		return nil, fmt.Errorf("unknown rolling policy type %q", doc.Type)
	}
}

func bucketAssignerFromDocument(doc *bucketAssignerSection) (filesystem.BucketAssigner, error) {
	if doc == nil {
		return nil, nil
	}
	switch doc.Type {
	case "basePath":
		return filesystem.NewBasePathBucketAssigner(), nil
	case "dateTime":
		return filesystem.NewDateTimeBucketAssigner(doc.Format), nil
	default:
		return nil, fmt.Errorf("unknown bucket assigner type %q", doc.Type)
	}
}

func csvSchemaFromDocument(doc FormatSection) (*csvformat.Schema, error) {
	builder := csvformat.NewSchemaBuilder()
	for _, col := range doc.Columns {
		switch col.Type {
		case "string":
			builder.AddStringColumn(col.Name)
		case "boolean":
			builder.AddBooleanColumn(col.Name)
		case "array":
			element, err := parseScalarType(col.Element)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			builder.AddArrayColumn(col.Name, col.Separator, element)
		default:
			t, err := parseScalarType(col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			builder.AddNumberColumn(col.Name, t)
		}
	}
	if doc.ColumnSeparator != "" {
		builder.SetColumnSeparator(singleRune(doc.ColumnSeparator))
	}
	if doc.QuoteChar != "" {
		builder.SetQuoteChar(singleRune(doc.QuoteChar))
	}
	if doc.EscapeChar != "" {
		builder.SetEscapeChar(singleRune(doc.EscapeChar))
	}
	if doc.AllowComments {
		builder.SetAllowComments()
	}
	if doc.UseHeader {
		builder.SetUseHeader()
	}
	if doc.StrictHeaders {
		builder.SetStrictHeaders()
	}
	return builder.Build()
}

func rowTypeFromColumns(columns []ColumnSection) (rows.Type, error) {
	fields := make([]rows.Field, 0, len(columns))
	for _, col := range columns {
		var t rows.Type
		var err error
		switch col.Type {
		case "array":
			var element rows.Type
			element, err = parseScalarType(col.Element)
			t = rows.Array(element)
		case "map":
			var element rows.Type
			element, err = parseScalarType(col.Element)
			t = rows.Map(element)
		default:
			t, err = parseScalarType(col.Type)
		}
		if err != nil {
			return rows.Type{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		fields = append(fields, rows.NewField(col.Name, t))
	}
	return rows.RowOf(fields...), nil
}

func parseScalarType(name string) (rows.Type, error) {
	switch name {
	case "tinyint":
		return rows.TinyInt(), nil
	case "smallint":
		return rows.SmallInt(), nil
	case "int":
		return rows.Int(), nil
	case "bigint":
		return rows.BigInt(), nil
	case "float":
		return rows.Float(), nil
	case "double":
		return rows.Double(), nil
	case "boolean":
		return rows.Boolean(), nil
	case "string":
		return rows.String(), nil
	}
	if strings.HasPrefix(name, "decimal(") {
		var precision, scale int
		if _, err := fmt.Sscanf(name, "decimal(%d,%d)", &precision, &scale); err != nil {
			return rows.Type{}, fmt.Errorf("invalid decimal type %q", name)
		}
		return rows.Decimal(precision, scale), nil
	}
	return rows.Type{}, fmt.Errorf("unknown column type %q", name)
}

func singleRune(s string) rune {
	return []rune(s)[0]
}

// resolveVars recursively processes a reflect.Value looking for strings
// with ${name} references and resolving them from the provided params.
func resolveVars(v reflect.Value, params *Params) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return resolveVars(v.Elem(), params)

	case reflect.Struct:
		for i := range v.NumField() {
			if err := resolveVars(v.Field(i), params); err != nil {
				return err
			}
		}

	case reflect.Slice:
		// Leave raw JSON bytes alone
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := range v.Len() {
			if err := resolveVars(v.Index(i), params); err != nil {
				return err
			}
		}

	case reflect.String:
		if !v.CanSet() {
			return nil
		}
		resolved, err := resolveString(v.String(), params)
		if err != nil {
			return err
		}
		v.SetString(resolved)
	}

	return nil
}

// resolveString substitutes every ${name} reference in a string.
func resolveString(s string, params *Params) (string, error) {
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			out.WriteString(s)
			return out.String(), nil
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			out.WriteString(s)
			return out.String(), nil
		}

		name := s[start+2 : start+end]
		value, ok := params.Get(name)
		if !ok {
			return "", fmt.Errorf("parameter %q not found", name)
		}

		out.WriteString(s[:start])
		out.WriteString(value)
		s = s[start+end+1:]
	}
}
