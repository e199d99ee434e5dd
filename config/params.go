package config

import (
	"fmt"
	"os"
	"strings"
)

// Params are named values substituted into a job document at load time,
// letting one document run against different environments.
type Params struct {
	values map[string]string
}

func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// ParamsFromArgs parses "name=value" pairs, typically from CLI flags.
func ParamsFromArgs(args []string) (*Params, error) {
	params := NewParams()
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", arg)
		}
		params.values[name] = value
	}
	return params, nil
}

func (p *Params) Set(name, value string) {
	p.values[name] = value
}

// Get retrieves a param's value, falling back to an environment variable.
func (p *Params) Get(name string) (string, bool) {
	if v, ok := p.values[name]; ok {
		return v, true
	}

	if v := os.Getenv("TRIBUTARY_PARAM_" + name); v != "" {
		return v, true
	}
	return "", false
}
