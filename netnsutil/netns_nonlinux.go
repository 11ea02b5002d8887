// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux

package netnsutil

import "github.com/tracebox/tracebox/tracebox"

// Run executes fn directly when name is empty. Network namespaces only exist
// on Linux.
func Run(name string, fn func() error) error {
	if name == "" {
		return fn()
	}
	return tracebox.ErrUnsupportedPlatform
}
