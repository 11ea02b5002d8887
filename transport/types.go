// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package transport

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/tracebox/tracebox/packet"
)

// Source reads packets received on one interface. Packets start at their
// network header.
type Source interface {
	// SetReadDeadline sets the time after which Read returns a *NoPacketError.
	SetReadDeadline(t time.Time) error
	// Read copies the next packet into buf and returns its length along with
	// the network protocol it starts with.
	Read(buf []byte) (int, packet.Protocol, error)
	Close() error
}

// Sink sends packets that start at their IP header.
type Sink interface {
	WriteTo(buf []byte, addr netip.Addr) error
	Close() error
}

// NoPacketError is returned by a Source when nothing arrived before the read
// deadline.
type NoPacketError struct {
	Err error
}

func (e *NoPacketError) Error() string {
	return fmt.Sprintf("no packet received: %s", e.Err)
}

func (e *NoPacketError) Unwrap() error {
	return e.Err
}

// Handle pairs the Source and Sink used for one interface and address family.
type Handle struct {
	Source Source
	Sink   Sink
}

// Close closes both halves of the handle.
func (h *Handle) Close() error {
	srcErr := h.Source.Close()
	sinkErr := h.Sink.Close()
	if srcErr != nil {
		return srcErr
	}
	return sinkErr
}
