package result

import (
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/tracebox"
)

// TextReporter prints one line per hop:
//
//	3: router.example (203.0.113.1) IP::TTL TCP::CheckSum
//
// and "ttl: *" on timeouts.
type TextReporter struct {
	w io.Writer
	// Names returns the reverse names of addr, nil to print addresses only.
	Names func(addr netip.Addr) []string
	// Verbose prints before/after values and ICMP extensions.
	Verbose bool
}

var _ tracebox.Reporter = &TextReporter{}

// NewTextReporter returns a TextReporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Header prints the line announcing the run.
func (r *TextReporter) Header(dst netip.Addr, hostname string, maxTTL uint8) {
	fmt.Fprintf(r.w, "tracebox to %s (%s): %d hops max\n", dst, hostname, maxTTL)
}

// OnProbeResult implements tracebox.Reporter.
func (r *TextReporter) OnProbeResult(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) tracebox.Verdict {
	fmt.Fprintln(r.w, r.line(ttl, responder, mods))
	return tracebox.Continue
}

func (r *TextReporter) line(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) string {
	if !responder.IsValid() {
		return fmt.Sprintf("%d: *", ttl)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d: ", ttl)
	var names []string
	if r.Names != nil {
		names = r.Names(responder)
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, "%s (%s)", names[0], responder)
	} else {
		b.WriteString(responder.String())
	}

	if mods == nil {
		return b.String()
	}
	for _, m := range mods.Modifications {
		b.WriteByte(' ')
		if r.Verbose {
			b.WriteString(m.Detail())
		} else {
			b.WriteString(m.String())
		}
	}
	if mods.Partial {
		b.WriteString(" [partial]")
	}
	if r.Verbose {
		for _, ext := range mods.Extensions {
			b.WriteString(" ")
			b.WriteString(ext.String())
		}
	}
	return b.String()
}
