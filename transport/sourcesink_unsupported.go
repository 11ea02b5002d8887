// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux

package transport

import (
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/tracebox"
)

func openHandle(_ string, _ bool, _ packet.Protocol) (*Handle, error) {
	return nil, tracebox.ErrUnsupportedPlatform
}
