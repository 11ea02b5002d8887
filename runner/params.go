package runner

import (
	"time"

	"github.com/tracebox/tracebox/tracebox"
)

type TraceboxParams struct {
	Hostname  string
	Protocol  string
	Port      int
	WantV6    bool
	Interface string
	MinTTL    int
	MaxTTL    int
	Timeout   time.Duration
	Retries   int
	// ProbeRate is the number of probes sent per second, 0 for no limit.
	ProbeRate             int
	ReverseDns            bool
	CollectSourcePublicIP bool
	PcapFile              string
	UploadURL             string
	Netns                 string
	// Reporter receives every hop as soon as it is probed. When it has a
	// Header(dst, hostname, maxTTL) method, that is called first.
	Reporter tracebox.Reporter
}
