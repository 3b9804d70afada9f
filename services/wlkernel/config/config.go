// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the wlkernel YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/telemetry"
)

// EnvConfigPath names the environment variable consulted when no config
// path is given on the command line.
const EnvConfigPath = "WLKERNEL_CONFIG"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of wlkernel.yaml.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Kernel    KernelConfig     `yaml:"kernel"`
	Datasets  []DatasetConfig  `yaml:"datasets" validate:"unique=Name,dive"`
	Cache     CacheConfig      `yaml:"cache"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address        string        `yaml:"address" validate:"required"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `yaml:"rate_limit_burst" validate:"gte=0"`
	MaxInstances   int           `yaml:"max_instances" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// KernelConfig holds defaults for kernel computations.
type KernelConfig struct {
	MaxDepth        int  `yaml:"max_depth" validate:"gte=0"`
	Iterations      int  `yaml:"iterations" validate:"gte=0"`
	Workers         int  `yaml:"workers" validate:"gte=0"`
	StrictInstances bool `yaml:"strict_instances"`
}

// DatasetConfig names one N-Triples file served by the API.
type DatasetConfig struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path" validate:"required"`

	// InstancePredicate, when set, selects the dataset's default instances:
	// subjects of triples whose predicate ends with this suffix.
	InstancePredicate string `yaml:"instance_predicate,omitempty"`
}

// CacheConfig configures the Badger result cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory   bool          `yaml:"in_memory"`
	TTL        time.Duration `yaml:"ttl" validate:"gte=0"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        ":8080",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			MaxInstances:   500,
			RequestTimeout: 60 * time.Second,
		},
		Kernel: KernelConfig{
			MaxDepth:   2,
			Iterations: 1,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Path:       "~/.wlkernel/cache",
			TTL:        24 * time.Hour,
			GCInterval: 5 * time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over the defaults and validates the result.
//
// Description:
//
//	An empty path falls back to $WLKERNEL_CONFIG; when that is empty too,
//	the defaults are returned. Keys missing from the file keep their
//	default values.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Read, parse or validation error. Validation errors wrap
//	        ErrInvalidConfig.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Dataset returns the dataset named name.
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetConfig{}, false
}
