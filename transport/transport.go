// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package transport sends finalized probes on a raw socket and waits for the
// packet that answers them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/tracebox"
)

const readBufLen = 65535

type handleKey struct {
	iface string
	ipv6  bool
	proto packet.Protocol
}

// OpenFunc opens the Source and Sink for an interface and address family.
type OpenFunc func(iface string, ipv6 bool, proto packet.Protocol) (*Handle, error)

// Transport implements tracebox.Transport. Handles are opened on first use
// and kept until Close.
type Transport struct {
	open    OpenFunc
	limiter *rate.Limiter

	mu      sync.Mutex
	handles map[handleKey]*Handle
}

var _ tracebox.Transport = &Transport{}

// Option customizes a Transport.
type Option func(*Transport)

// WithRate caps the number of probes sent per second. Zero disables pacing.
func WithRate(perSecond int) Option {
	return func(t *Transport) {
		if perSecond <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithOpenFunc replaces the platform socket opener.
func WithOpenFunc(open OpenFunc) Option {
	return func(t *Transport) {
		t.open = open
	}
}

// New returns a Transport backed by the platform's raw sockets.
func New(opts ...Option) *Transport {
	t := &Transport{
		open:    openHandle,
		limiter: rate.NewLimiter(rate.Limit(common.DefaultProbeRate), 1),
		handles: make(map[handleKey]*Handle),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) handle(iface string, ipv6 bool, proto packet.Protocol) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := handleKey{iface, ipv6, proto}
	if h, ok := t.handles[key]; ok {
		return h, nil
	}
	h, err := t.open(iface, ipv6, proto)
	if err != nil {
		return nil, err
	}
	t.handles[key] = h
	return h, nil
}

// SendAndWait sends probe up to retries+1 times on iface and returns the
// first packet answering it, or nil when every attempt timed out.
func (t *Transport) SendAndWait(ctx context.Context, probe []byte, iface string, timeout time.Duration, retries int) (*tracebox.Reply, error) {
	m, err := newMatcher(probe)
	if err != nil {
		return nil, err
	}
	h, err := t.handle(iface, m.dst.Is6(), m.proto)
	if err != nil {
		return nil, fmt.Errorf("failed to open sockets on %s: %w", iface, err)
	}

	buf := make([]byte, readBufLen)
	for attempt := 0; attempt <= retries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := h.Sink.WriteTo(probe, m.dst); err != nil {
			return nil, fmt.Errorf("failed to send probe: %w", err)
		}

		reply, err := t.wait(ctx, h.Source, m, buf, time.Now().Add(timeout))
		if err != nil || reply != nil {
			return reply, err
		}
		log.Tracef("attempt %d to %s timed out", attempt+1, m.dst)
	}
	return nil, nil
}

func (t *Transport) wait(ctx context.Context, src Source, m *matcher, buf []byte, deadline time.Time) (*tracebox.Reply, error) {
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := src.SetReadDeadline(time.Now().Add(getReadTimeout(deadline))); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, first, err := src.Read(buf)
		var noPkt *NoPacketError
		if errors.As(err, &noPkt) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reply: %w", err)
		}
		if !m.match(buf[:n], first) {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		return &tracebox.Reply{Data: data, Timestamp: time.Now(), LinkType: first}, nil
	}
	return nil, nil
}

// Close closes every handle opened so far.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for key, h := range t.handles {
		errs = append(errs, h.Close())
		delete(t.handles, key)
	}
	return errors.Join(errs...)
}
