// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package transport

import (
	"fmt"

	"github.com/tracebox/tracebox/packet"
)

func openHandle(iface string, ipv6 bool, proto packet.Protocol) (*Handle, error) {
	src, err := newSourceLinux(iface, proto)
	if err != nil {
		return nil, err
	}
	sink, err := newSinkLinux(iface, ipv6)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to open sink: %w", err)
	}
	return &Handle{Source: src, Sink: sink}, nil
}
