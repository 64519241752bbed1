package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is this demo's on-disk configuration, in the section-per-concern
// shape mailproxy.go's generated mailproxy.toml demonstrates
// ([Proxy]/[Logging] sections with plain scalar fields).
type Config struct {
	Endpoint  EndpointConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

type EndpointConfig struct {
	Label                string
	Address              string
	Transport            string // "tcp" or "quic"
	KeepaliveIntervalMS  int64
	KeepaliveTimeoutMS   int64
	MessageTimeoutMS     int64
}

type LoggingConfig struct {
	Disable bool
	Level   string
}

type MetricsConfig struct {
	Disable bool
	Address string
}

// Default returns the demo's built-in configuration, used when no config
// file is supplied.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Label:               "wireecho",
			Address:             "127.0.0.1:7337",
			Transport:           "tcp",
			KeepaliveIntervalMS: 10730,
			KeepaliveTimeoutMS:  30000,
			MessageTimeoutMS:    60000,
		},
		Logging: LoggingConfig{Level: "DEBUG"},
		Metrics: MetricsConfig{Address: "127.0.0.1:9337"},
	}
}

// LoadConfig parses a TOML configuration file, in the shape
// github.com/BurntSushi/toml decodes throughout the katzenpost
// configuration ecosystem this demo is drawn from.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("wireecho: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *EndpointConfig) keepaliveInterval() time.Duration {
	return time.Duration(c.KeepaliveIntervalMS) * time.Millisecond
}

func (c *EndpointConfig) keepaliveTimeout() time.Duration {
	return time.Duration(c.KeepaliveTimeoutMS) * time.Millisecond
}

func (c *EndpointConfig) messageTimeout() time.Duration {
	return time.Duration(c.MessageTimeoutMS) * time.Millisecond
}
