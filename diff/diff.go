// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package diff compares a probe with the copy of it quoted back by a router
// and lists what was modified on the way.
package diff

import (
	"bytes"
	"slices"
	"strings"

	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/reconstruct"
)

// Diff lists the modifications turning probe into reply. Protocols are
// visited in ascending id order and link layers are ignored. When partial is
// set, layers missing from reply are not reported as deleted.
func Diff(probe, reply *packet.Packet, partial bool) []Modification {
	var mods []Modification
	for _, proto := range protocols(probe, reply) {
		pl, rl := probe.Layer(proto), reply.Layer(proto)
		switch {
		case pl != nil && rl != nil:
			mods = append(mods, diffFields(pl, rl)...)
			if m, ok := diffPayload(pl, rl); ok {
				mods = append(mods, m)
			}
		case pl != nil:
			if !partial {
				mods = append(mods, layerChange(Deleted, pl, nil))
			}
		case rl != nil:
			mods = append(mods, layerChange(Added, nil, rl))
		}
	}
	return mods
}

func protocols(pkts ...*packet.Packet) []packet.Protocol {
	var out []packet.Protocol
	for _, p := range pkts {
		for _, l := range p.Layers() {
			if proto := l.Protocol(); !proto.IsLinkLayer() && !slices.Contains(out, proto) {
				out = append(out, proto)
			}
		}
	}
	slices.Sort(out)
	return out
}

// diffFields compares the fields both layers define, bit by bit.
func diffFields(pl, rl packet.Layer) []Modification {
	var mods []Modification
	pf, rf := pl.Fields(), rl.Fields()
	ph, rh := pl.Header(), rl.Header()
	size := max(len(ph), len(rh))
	a, b := make([]byte, size), make([]byte, size)
	for i := range min(len(pf), len(rf)) {
		clear(a)
		clear(b)
		pf[i].Render(ph, a)
		rf[i].Render(rh, b)
		if !bytes.Equal(a, b) {
			mods = append(mods, fieldChange(pl, pf[i], pf[i].Text(ph), rf[i].Text(rh)))
		}
	}
	return mods
}

// diffPayload compares the bytes the layers carry past their fields. Partial
// headers carry none and are skipped.
func diffPayload(pl, rl packet.Layer) (Modification, bool) {
	if packet.IsPartial(pl) || packet.IsPartial(rl) {
		return Modification{}, false
	}
	pp, rp := pl.Payload(), rl.Payload()
	switch {
	case len(pp) < len(rp):
		return layerChange(Added, nil, rl), true
	case len(pp) > len(rp):
		return layerChange(Deleted, pl, nil), true
	case !bytes.Equal(pp, rp):
		return layerChange(Changed, pl, rl), true
	}
	return Modification{}, false
}

// PacketModifications is the outcome of comparing one probe with its reply.
type PacketModifications struct {
	// Original is a copy of the probe as sent.
	Original *packet.Packet
	// Received is the reconstructed quotation, nil when the reply could not
	// be analyzed.
	Received      *packet.Packet
	Modifications []Modification
	Extensions    []packet.Layer
	Partial       bool
}

// New compares probe with echo. A nil echo stands for a reply that was
// received but could not be analyzed.
func New(probe *packet.Packet, echo *reconstruct.Echo) *PacketModifications {
	pm := &PacketModifications{Original: probe.Clone()}
	if echo == nil {
		return pm
	}
	pm.Received = echo.Packet
	pm.Extensions = echo.Extensions
	pm.Partial = echo.Partial
	pm.Modifications = Diff(pm.Original, echo.Packet, echo.Partial)
	return pm
}

// Analyzable reports whether a quotation was recovered from the reply.
func (pm *PacketModifications) Analyzable() bool {
	return pm != nil && pm.Received != nil
}

// Filter returns the modifications of the given kind.
func (pm *PacketModifications) Filter(kind Kind) []Modification {
	var out []Modification
	for _, m := range pm.Modifications {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (pm *PacketModifications) String() string {
	names := make([]string, len(pm.Modifications))
	for i, m := range pm.Modifications {
		names[i] = m.String()
	}
	return strings.Join(names, " ")
}
