// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package transport

import (
	"golang.org/x/net/bpf"

	"github.com/tracebox/tracebox/packet"
)

const maxPacketLen = 1 << 18

// replyFilter keeps the packets a probe of the given transport protocol can
// get back: ICMP errors for either family plus direct replies of the same
// protocol. Packets start at the IP header.
func replyFilter(proto packet.Protocol) []bpf.Instruction {
	p := uint32(proto)
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 1},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: 0xf0},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x40, SkipFalse: 3},

		// IPv4: protocol
		bpf.LoadAbsolute{Off: 9, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(packet.ProtocolICMP), SkipTrue: 5},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 4, SkipFalse: 5},

		// IPv6: next header, extension headers are not followed
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x60, SkipFalse: 4},
		bpf.LoadAbsolute{Off: 6, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(packet.ProtocolICMPv6), SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipFalse: 1},

		bpf.RetConstant{Val: maxPacketLen},
		bpf.RetConstant{Val: 0},
	}
}

func assembleReplyFilter(proto packet.Protocol) ([]bpf.RawInstruction, error) {
	return bpf.Assemble(replyFilter(proto))
}
