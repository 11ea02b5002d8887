// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package diff

import (
	"fmt"

	"github.com/tracebox/tracebox/packet"
)

// Kind tells how a probe differs from its quotation.
type Kind uint8

const (
	// Changed is a field, or a whole layer payload, whose value differs.
	Changed Kind = iota
	// Added is a layer, or layer payload bytes, present only in the quotation.
	Added
	// Deleted is a layer, or layer payload bytes, present only in the probe.
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Changed:
		return "changed"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{Changed, Added, Deleted} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown modification kind %q", text)
}

// Modification is one difference between a probe and its quotation. Field is
// empty when the whole layer is concerned. Offset and Length are in bits
// from the start of the layer.
type Modification struct {
	Kind     Kind            `json:"kind"`
	Protocol packet.Protocol `json:"protocol"`
	Layer    string          `json:"layer"`
	Field    string          `json:"field,omitempty"`
	Offset   int             `json:"offset"`
	Length   int             `json:"length"`
	Before   string          `json:"before,omitempty"`
	After    string          `json:"after,omitempty"`
}

// Name is "Layer::Field" for a field and the layer name otherwise.
func (m Modification) Name() string {
	if m.Field == "" {
		return m.Layer
	}
	return m.Layer + "::" + m.Field
}

// String renders the modification the way it is printed per hop: "IP::TTL",
// "+TCP" or "-TCP".
func (m Modification) String() string {
	switch m.Kind {
	case Added:
		return "+" + m.Name()
	case Deleted:
		return "-" + m.Name()
	}
	return m.Name()
}

// Detail adds the values on both sides to String.
func (m Modification) Detail() string {
	switch m.Kind {
	case Added:
		return fmt.Sprintf("%s %s", m, m.After)
	case Deleted:
		return fmt.Sprintf("%s %s", m, m.Before)
	}
	return fmt.Sprintf("%s (%s -> %s)", m, m.Before, m.After)
}

func fieldChange(l packet.Layer, f packet.Field, before, after string) Modification {
	return Modification{
		Kind:     Changed,
		Protocol: l.Protocol(),
		Layer:    l.Name(),
		Field:    f.Name,
		Offset:   f.Offset(),
		Length:   f.Length,
		Before:   before,
		After:    after,
	}
}

func layerChange(kind Kind, before, after packet.Layer) Modification {
	m := Modification{Kind: kind}
	ref := before
	if ref == nil {
		ref = after
	}
	m.Protocol, m.Layer = ref.Protocol(), ref.Name()
	m.Offset = len(ref.Header()) * 8
	m.Length = len(ref.Payload()) * 8
	if kind != Changed {
		m.Offset, m.Length = 0, ref.Len()*8
	}
	if before != nil {
		m.Before = before.String()
	}
	if after != nil {
		m.After = after.String()
	}
	return m
}
