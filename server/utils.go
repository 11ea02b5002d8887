// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package server

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/runner"
)

// parseTraceboxParams extracts and validates query parameters from the HTTP request
func parseTraceboxParams(u *url.URL) (runner.TraceboxParams, error) {
	query := u.Query()

	hostname := query.Get("target")
	if hostname == "" {
		return runner.TraceboxParams{}, fmt.Errorf("missing required parameter: target")
	}

	protocol := getStringParam(query, "protocol", common.DefaultProtocol)
	switch protocol {
	case "tcp", "udp", "icmp":
	default:
		return runner.TraceboxParams{}, fmt.Errorf("unknown protocol %q", protocol)
	}

	timeoutMs := getIntParam(query, "timeout", int(common.DefaultTimeout/time.Millisecond))
	if timeoutMs <= 0 {
		return runner.TraceboxParams{}, fmt.Errorf("invalid timeout %d", timeoutMs)
	}

	return runner.TraceboxParams{
		Hostname:              hostname,
		Protocol:              protocol,
		Port:                  getIntParam(query, "port", common.DefaultPort),
		WantV6:                getBoolParam(query, "ipv6", false),
		MinTTL:                getIntParam(query, "min-ttl", common.DefaultMinTTL),
		MaxTTL:                getIntParam(query, "max-ttl", common.DefaultMaxTTL),
		Timeout:               time.Duration(timeoutMs) * time.Millisecond,
		Retries:               getIntParam(query, "retries", common.DefaultRetries),
		ProbeRate:             common.DefaultProbeRate,
		ReverseDns:            getBoolParam(query, "reverse-dns", false),
		CollectSourcePublicIP: getBoolParam(query, "source-public-ip", false),
	}, nil
}

// Helper functions for parsing query parameters

func getStringParam(query map[string][]string, key string, defaultValue string) string {
	if values, ok := query[key]; ok && len(values) > 0 {
		return values[0]
	}
	return defaultValue
}

func getIntParam(query map[string][]string, key string, defaultValue int) int {
	if values, ok := query[key]; ok && len(values) > 0 {
		if val, err := strconv.Atoi(values[0]); err == nil {
			return val
		}
	}
	return defaultValue
}

func getBoolParam(query map[string][]string, key string, defaultValue bool) bool {
	if values, ok := query[key]; ok && len(values) > 0 {
		if val, err := strconv.ParseBool(values[0]); err == nil {
			return val
		}
	}
	return defaultValue
}
