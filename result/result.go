package result

import (
	"encoding/base64"
	"net/netip"

	"github.com/google/uuid"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/tracebox"
)

type (
	// Results all the results from a single tracebox run
	Results struct {
		RunID       string      `json:"run_id"`
		Params      Params      `json:"params"`
		Source      Source      `json:"source"`
		Destination Destination `json:"destination"`
		Hops        []*Hop      `json:"hops"`
		Stats       Stats       `json:"stats"`
		Outcome     Outcome     `json:"outcome"`
		Tags        []string    `json:"tags,omitempty"`
	}

	// Params echoes the parameters the run was started with
	Params struct {
		Protocol  string `json:"protocol"`
		Hostname  string `json:"hostname"`
		Port      int    `json:"port"`
		IPv6      bool   `json:"ipv6"`
		MinTTL    uint8  `json:"min_ttl"`
		MaxTTL    uint8  `json:"max_ttl"`
		TimeoutMs int64  `json:"timeout_ms"`
		Retries   int    `json:"retries"`
	}

	// Source contains the probe source info
	Source struct {
		IP        netip.Addr `json:"ip"`
		Interface string     `json:"interface"`
		PublicIP  string     `json:"public_ip,omitempty"`
	}

	// Destination contains the probe destination info
	Destination struct {
		IP         netip.Addr `json:"ip"`
		Hostname   string     `json:"hostname"`
		ReverseDNS []string   `json:"reverse_dns,omitempty"`
	}

	// Hop is what came back for one TTL. IP is empty when nothing answered.
	Hop struct {
		TTL           uint8               `json:"ttl"`
		IP            string              `json:"ip"`
		ReverseDNS    []string            `json:"reverse_dns,omitempty"`
		Analyzable    bool                `json:"analyzable"`
		Partial       bool                `json:"partial"`
		Modifications []diff.Modification `json:"modifications"`
		Extensions    []string            `json:"extensions,omitempty"`

		responder netip.Addr
	}

	// Stats summarizes the hops
	Stats struct {
		Answered   int `json:"answered"`
		Analyzable int `json:"analyzable"`
		Modified   int `json:"modified"`
		// FirstModifiedTTL is the first hop quoting a modified probe, 0 if none.
		FirstModifiedTTL uint8 `json:"first_modified_ttl"`
	}

	// Outcome is why the run ended
	Outcome struct {
		Reason string `json:"reason"`
		TTL    uint8  `json:"ttl"`
	}
)

// NewHop converts one controller result.
func NewHop(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) *Hop {
	hop := &Hop{TTL: ttl, responder: responder, Modifications: []diff.Modification{}}
	if responder.IsValid() {
		hop.IP = responder.String()
	}
	if mods == nil {
		return hop
	}
	hop.Analyzable = mods.Analyzable()
	hop.Partial = mods.Partial
	if len(mods.Modifications) > 0 {
		hop.Modifications = mods.Modifications
	}
	for _, l := range mods.Extensions {
		hop.Extensions = append(hop.Extensions, l.String())
	}
	return hop
}

// Responder is the address that answered, invalid on timeouts.
func (h *Hop) Responder() netip.Addr {
	return h.responder
}

// SetOutcome records how the controller ended the run.
func (r *Results) SetOutcome(o *tracebox.Outcome) {
	r.Outcome = Outcome{Reason: o.Reason.String(), TTL: o.TTL}
	r.Source.IP = o.Source
	r.Source.Interface = o.Interface
	r.Destination.IP = o.Destination
}

// Normalize computes Stats from Hops.
func (r *Results) Normalize() {
	var stats Stats
	for _, hop := range r.Hops {
		if hop.IP != "" {
			stats.Answered++
		}
		if hop.Analyzable {
			stats.Analyzable++
		}
		if len(hop.Modifications) > 0 {
			stats.Modified++
			if stats.FirstModifiedTTL == 0 {
				stats.FirstModifiedTTL = hop.TTL
			}
		}
	}
	r.Stats = stats
}

// New returns empty Results with a fresh run id.
func New(params Params) *Results {
	return &Results{
		RunID:  newRunID(),
		Params: params,
		Hops:   []*Hop{},
	}
}

// newRunID is a random UUID in unpadded URL-safe base64, 22 characters long.
func newRunID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// EnrichWithReverseDns fills the reverse names of the destination and of
// every hop that answered.
func (r *Results) EnrichWithReverseDns(names func(netip.Addr) []string) {
	if r.Destination.IP.IsValid() {
		r.Destination.ReverseDNS = names(r.Destination.IP)
	}
	for _, hop := range r.Hops {
		if hop.responder.IsValid() {
			hop.ReverseDNS = names(hop.responder)
		}
	}
}
