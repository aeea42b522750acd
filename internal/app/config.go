package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// GraphPath points at a .hcl graph document or a directory of them.
	GraphPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
