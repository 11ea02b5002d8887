// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package packet models packets as ordered stacks of protocol layers whose
// headers are described field by field, so that two packets can be compared
// down to the bit.
package packet

import "strings"

// Packet is an ordered stack of layers, outermost first. Layers are only
// added and removed at the innermost end.
type Packet struct {
	layers []Layer
}

// New builds a packet from layers, outermost first.
func New(layers ...Layer) *Packet {
	return &Packet{layers: layers}
}

// Push appends l as the innermost layer.
func (p *Packet) Push(l Layer) {
	p.layers = append(p.layers, l)
}

// Pop removes and returns the innermost layer, or nil for an empty packet.
func (p *Packet) Pop() Layer {
	if len(p.layers) == 0 {
		return nil
	}
	l := p.layers[len(p.layers)-1]
	p.layers = p.layers[:len(p.layers)-1]
	return l
}

// Layers returns the layers, outermost first. The slice must not be modified.
func (p *Packet) Layers() []Layer {
	return p.layers
}

// Replace swaps the i-th layer for l.
func (p *Packet) Replace(i int, l Layer) {
	p.layers[i] = l
}

// Index returns the position of the first layer with the given protocol, or -1.
func (p *Packet) Index(proto Protocol) int {
	for i, l := range p.layers {
		if l.Protocol() == proto {
			return i
		}
	}
	return -1
}

// Layer returns the first layer with the given protocol, or nil.
func (p *Packet) Layer(proto Protocol) Layer {
	if i := p.Index(proto); i >= 0 {
		return p.layers[i]
	}
	return nil
}

// NetworkLayer returns the first IPv4 or IPv6 layer, or nil.
func (p *Packet) NetworkLayer() NetworkLayer {
	for _, l := range p.layers {
		if n, ok := l.(NetworkLayer); ok {
			return n
		}
	}
	return nil
}

// Size is the number of bytes of the packet on the wire.
func (p *Packet) Size() int {
	n := 0
	for _, l := range p.layers {
		n += l.Len()
	}
	return n
}

// Bytes concatenates the bytes of every layer.
func (p *Packet) Bytes() []byte {
	out := make([]byte, 0, p.Size())
	for _, l := range p.layers {
		out = append(out, l.Header()...)
		out = append(out, l.Payload()...)
	}
	return out
}

// BytesFrom concatenates the bytes of the i-th layer and every inner layer.
func (p *Packet) BytesFrom(i int) []byte {
	return New(p.layers[i:]...).Bytes()
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	c := &Packet{layers: make([]Layer, len(p.layers))}
	for i, l := range p.layers {
		c.layers[i] = l.Clone()
	}
	return c
}

func (p *Packet) String() string {
	parts := make([]string, len(p.layers))
	for i, l := range p.layers {
		parts[i] = l.String()
	}
	return strings.Join(parts, " / ")
}
