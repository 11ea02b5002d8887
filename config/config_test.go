// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Protocol)
	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, 1, cfg.MinTTL)
	assert.Equal(t, 64, cfg.MaxTTL)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 20, cfg.ProbeRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:3765", cfg.Listen)
	assert.False(t, cfg.IPv6)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("TRACEBOX_PROTOCOL", "udp")
	t.Setenv("TRACEBOX_PORT", "53")
	t.Setenv("TRACEBOX_IPV6", "true")
	t.Setenv("TRACEBOX_TIMEOUT", "250ms")
	t.Setenv("TRACEBOX_NETNS", "blue")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "udp", cfg.Protocol)
	assert.Equal(t, 53, cfg.Port)
	assert.True(t, cfg.IPv6)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "blue", cfg.Netns)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracebox.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
protocol: icmp
max_ttl: 30
timeout: 2s
pcap_file: /tmp/run.pcap
`), 0o600))
	t.Setenv("TRACEBOX_MAX_TTL", "20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "icmp", cfg.Protocol)
	assert.Equal(t, 20, cfg.MaxTTL, "the environment overrides the file")
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "/tmp/run.pcap", cfg.PcapFile)
	assert.Equal(t, 80, cfg.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"protocol", func(c *Config) { c.Protocol = "sctp" }, `unknown protocol "sctp"`},
		{"port", func(c *Config) { c.Port = 0 }, "invalid port 0"},
		{"min ttl", func(c *Config) { c.MinTTL = 0 }, "invalid min ttl 0"},
		{"max ttl", func(c *Config) { c.MaxTTL = 256 }, "invalid max ttl 256"},
		{"ttl order", func(c *Config) { c.MinTTL = 10; c.MaxTTL = 5 }, "min ttl 10 is above max ttl 5"},
		{"timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be positive"},
		{"retries", func(c *Config) { c.Retries = -1 }, "retries must not be negative"},
		{"rate", func(c *Config) { c.ProbeRate = -1 }, "probe rate must not be negative"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"upload without pcap", func(c *Config) { c.UploadURL = "http://example.com" }, "an upload url needs a pcap file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestDescribe(t *testing.T) {
	desc, err := Describe()
	require.NoError(t, err)
	assert.Contains(t, desc, "TRACEBOX_PROTOCOL")
	assert.Contains(t, desc, "TRACEBOX_LISTEN")
}
