// Package config loads job documents that describe a source, a sink, and
// the formats connecting them.
package config

import (
	"errors"
	"fmt"

	"tributary.dev/tributary/connectors"
)

// Config is the object representing job configuration.
type Config struct {
	WorkerCount            int
	WorkingStorageLocation string
	Source                 connectors.SourceConfig
	Sink                   connectors.SinkConfig
}

func (c *Config) Validate() error {
	var err error
	if c.Source == nil {
		err = errors.Join(err, fmt.Errorf("a source is required"))
	} else {
		err = errors.Join(err, c.Source.Validate())
	}
	if c.Sink != nil {
		err = errors.Join(err, c.Sink.Validate())
	}
	if c.WorkerCount < 1 {
		err = errors.Join(err, fmt.Errorf("need at least 1 worker but had %d", c.WorkerCount))
	}
	return err
}
