// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import (
	"encoding/hex"
	"net"
	"net/netip"
	"strconv"
)

// Format selects how a field value is rendered as text.
type Format uint8

const (
	FormatDec Format = iota
	FormatHex
	FormatIPv4
	FormatIPv6
	FormatMAC
)

// Field describes a bit range of a layer header. Bits are numbered from the
// most significant bit of the first header byte.
type Field struct {
	Name   string
	Word   int
	Bit    int
	Length int
	Format Format
}

// Offset is the position of the first bit of the field within the header.
func (f Field) Offset() int {
	return f.Word*32 + f.Bit
}

// End is the bit position just past the field.
func (f Field) End() int {
	return f.Offset() + f.Length
}

// Covered reports whether a header of n bytes holds every bit of the field.
func (f Field) Covered(n int) bool {
	return f.End() <= n*8
}

// Render copies the field bits of src into dst at the same bit positions.
// Bits past the end of src are treated as zero and bits past the end of dst
// are dropped.
func (f Field) Render(src, dst []byte) {
	off := f.Offset()
	if off%8 == 0 && f.Length%8 == 0 {
		from, to := off/8, f.End()/8
		for i := from; i < to && i < len(dst); i++ {
			if i < len(src) {
				dst[i] = src[i]
			} else {
				dst[i] = 0
			}
		}
		return
	}
	for i := off; i < f.End(); i++ {
		if i/8 >= len(dst) {
			return
		}
		mask := byte(0x80) >> (i % 8)
		if getBit(src, i) {
			dst[i/8] |= mask
		} else {
			dst[i/8] &^= mask
		}
	}
}

func getBit(b []byte, i int) bool {
	if i/8 >= len(b) {
		return false
	}
	return b[i/8]&(byte(0x80)>>(i%8)) != 0
}

// Uint returns the field value as an integer. Fields wider than 64 bits
// return their lowest 64 bits.
func (f Field) Uint(src []byte) uint64 {
	var v uint64
	for i := f.Offset(); i < f.End(); i++ {
		v <<= 1
		if getBit(src, i) {
			v |= 1
		}
	}
	return v
}

// Set writes v into the field bits of dst.
func (f Field) Set(dst []byte, v uint64) {
	for i := f.End() - 1; i >= f.Offset(); i-- {
		if i/8 < len(dst) {
			mask := byte(0x80) >> (i % 8)
			if v&1 != 0 {
				dst[i/8] |= mask
			} else {
				dst[i/8] &^= mask
			}
		}
		v >>= 1
	}
}

func (f Field) raw(src []byte) []byte {
	from, to := f.Offset()/8, (f.End()+7)/8
	out := make([]byte, to-from)
	if from < len(src) {
		copy(out, src[from:min(to, len(src))])
	}
	return out
}

// Text renders the field value found in src.
func (f Field) Text(src []byte) string {
	switch f.Format {
	case FormatIPv4, FormatIPv6:
		if addr, ok := netip.AddrFromSlice(f.raw(src)); ok {
			return addr.String()
		}
		return "0x" + hex.EncodeToString(f.raw(src))
	case FormatMAC:
		return net.HardwareAddr(f.raw(src)).String()
	case FormatHex:
		return "0x" + strconv.FormatUint(f.Uint(src), 16)
	}
	return strconv.FormatUint(f.Uint(src), 10)
}
