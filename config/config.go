// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package config loads tracebox settings from a YAML file and TRACEBOX_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tracebox/tracebox/log"
)

// Config holds every setting of the CLI and the server. Command line flags
// override it.
type Config struct {
	Protocol  string        `yaml:"protocol" env:"TRACEBOX_PROTOCOL" env-default:"tcp" env-description:"probe protocol (tcp, udp or icmp)"`
	Port      int           `yaml:"port" env:"TRACEBOX_PORT" env-default:"80" env-description:"destination port of tcp and udp probes"`
	IPv6      bool          `yaml:"ipv6" env:"TRACEBOX_IPV6" env-description:"probe over IPv6"`
	Interface string        `yaml:"interface" env:"TRACEBOX_INTERFACE" env-description:"interface to probe from, looked up from the routing table when empty"`
	MinTTL    int           `yaml:"min_ttl" env:"TRACEBOX_MIN_TTL" env-default:"1" env-description:"first hop count"`
	MaxTTL    int           `yaml:"max_ttl" env:"TRACEBOX_MAX_TTL" env-default:"64" env-description:"last hop count"`
	Timeout   time.Duration `yaml:"timeout" env:"TRACEBOX_TIMEOUT" env-default:"1s" env-description:"time to wait for a reply"`
	Retries   int           `yaml:"retries" env:"TRACEBOX_RETRIES" env-default:"3" env-description:"extra attempts per hop count"`
	ProbeRate int           `yaml:"probe_rate" env:"TRACEBOX_PROBE_RATE" env-default:"20" env-description:"probes sent per second, 0 for no limit"`
	LogLevel  string        `yaml:"log_level" env:"TRACEBOX_LOG_LEVEL" env-default:"info" env-description:"error, warn, info, debug or trace"`
	PcapFile  string        `yaml:"pcap_file" env:"TRACEBOX_PCAP_FILE" env-description:"write probes and quotations to this pcap file"`
	UploadURL string        `yaml:"upload_url" env:"TRACEBOX_UPLOAD_URL" env-description:"POST the pcap file here after the run"`
	Netns     string        `yaml:"netns" env:"TRACEBOX_NETNS" env-description:"named network namespace to probe from"`
	NoResolve bool          `yaml:"no_resolve" env:"TRACEBOX_NO_RESOLVE" env-description:"do not look up hop names"`
	JSON      bool          `yaml:"json" env:"TRACEBOX_JSON" env-description:"print the JSON results document"`
	Listen    string        `yaml:"listen" env:"TRACEBOX_LISTEN" env-default:"127.0.0.1:3765" env-description:"address of the HTTP server"`
}

// Load reads path when it is not empty, then the environment. Unset fields
// get their defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Protocol {
	case "tcp", "udp", "icmp":
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MinTTL < 1 || c.MinTTL > 255 {
		return fmt.Errorf("invalid min ttl %d", c.MinTTL)
	}
	if c.MaxTTL < 1 || c.MaxTTL > 255 {
		return fmt.Errorf("invalid max ttl %d", c.MaxTTL)
	}
	if c.MinTTL > c.MaxTTL {
		return fmt.Errorf("min ttl %d is above max ttl %d", c.MinTTL, c.MaxTTL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.ProbeRate < 0 {
		return fmt.Errorf("probe rate must not be negative, got %d", c.ProbeRate)
	}
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.UploadURL != "" && c.PcapFile == "" {
		return fmt.Errorf("an upload url needs a pcap file")
	}
	return nil
}

// Describe lists the environment variables Load reads.
func Describe() (string, error) {
	header := "Environment variables:"
	return cleanenv.GetDescription(&Config{}, &header)
}
