// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package capture records probes and the quotations recovered from their
// replies to a pcap file.
package capture

import (
	"io"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/tracebox"
)

const snapLen = 65535

// Writer is a tracebox.Reporter that writes every probe and every quotation
// as raw IP packets, then forwards the result to Next.
type Writer struct {
	Next tracebox.Reporter

	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	now    func() time.Time
	count  int
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer, next tracebox.Reporter) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		return nil, errors.Wrap(err, "failed to write pcap header")
	}
	cw := &Writer{Next: next, w: pw, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw, nil
}

// Create truncates path and returns a Writer recording into it.
func Create(path string, next tracebox.Reporter) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create capture file %s", path)
	}
	w, err := NewWriter(f, next)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) OnProbeResult(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) tracebox.Verdict {
	if mods != nil {
		if err := w.record(mods); err != nil {
			log.Warnf("ttl %d: capture failed: %s", ttl, err)
		}
	}
	if w.Next == nil {
		return tracebox.Continue
	}
	return w.Next.OnProbeResult(ttl, responder, mods)
}

func (w *Writer) record(mods *diff.PacketModifications) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := w.now()
	if err := w.writePacket(ts, mods.Original.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write probe")
	}
	if mods.Received != nil {
		if err := w.writePacket(ts, mods.Received.Bytes()); err != nil {
			return errors.Wrap(err, "failed to write quotation")
		}
	}
	return nil
}

func (w *Writer) writePacket(ts time.Time, data []byte) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of packets written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file when the Writer was given one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return errors.Wrap(w.closer.Close(), "failed to close capture file")
}
