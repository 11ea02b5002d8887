package result

import (
	"net/netip"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/tracebox"
)

// Collector is a tracebox.Reporter that keeps every hop and forwards it to
// Next when set. Its verdict is the one of Next.
type Collector struct {
	Next tracebox.Reporter
	hops []*Hop
}

var _ tracebox.Reporter = &Collector{}

// OnProbeResult implements tracebox.Reporter.
func (c *Collector) OnProbeResult(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) tracebox.Verdict {
	c.hops = append(c.hops, NewHop(ttl, responder, mods))
	if c.Next == nil {
		return tracebox.Continue
	}
	return c.Next.OnProbeResult(ttl, responder, mods)
}

// Hops returns the hops collected so far.
func (c *Collector) Hops() []*Hop {
	return c.hops
}
