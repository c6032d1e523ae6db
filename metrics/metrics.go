// Package metrics exposes the counters the teacher's API server
// publishes at /metrics: per-verdict-source query counts and
// censor-learn scrub/clone counts, so an operator can tell at a
// glance whether traffic is being sinkholed, passed through, or
// forwarded, and how actively the blacklist/whitelist are growing
// themselves.
package metrics

import (
	"strconv"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the query and censor-learn counters. Construct exactly
// one per process; New panics (via prometheus.MustRegister) on a
// duplicate registration against the same registerer.
type Metrics struct {
	queries *prometheus.CounterVec
	Learn   *prometheus.CounterVec
}

// New builds the counters and registers them against reg. Pass nil to
// skip registration entirely (tests construct throwaway Metrics this
// way, since testutil reads a collector's value directly without
// needing it registered anywhere).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sinkdns_queries_total",
			Help: "DNS queries processed, labeled by query type, response code and the handler that answered.",
		}, []string{"qtype", "rcode", "source"}),
		Learn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sinkdns_censor_learn_total",
			Help: "Censor-Learn actions taken against upstream AUTHORITY records.",
		}, []string{"action"}),
	}

	if reg != nil {
		reg.MustRegister(m.queries, m.Learn)
	}

	return m
}

// ObserveQuery records one processed query. source is the name of the
// handler whose verdict answered it ("whitelist", "blacklist",
// "recursive"), or "none" for a synthesized NXDOMAIN.
func (m *Metrics) ObserveQuery(qtype uint16, rcode int, source string) {
	m.queries.WithLabelValues(dns.TypeToString[qtype], strconv.Itoa(rcode), source).Inc()
}

// ObserveScrub records a censor-Learn pass that scrubbed AUTHORITY and
// ADDITIONAL because neither list claimed the delegation.
func (m *Metrics) ObserveScrub() {
	m.Learn.WithLabelValues("scrub").Inc()
}

// ObserveClone records a censor-Learn pass that extended a trie by
// cloning an existing policy entry onto a newly observed name.
// kind is "whitelist" or "blacklist".
func (m *Metrics) ObserveClone(kind string) {
	m.Learn.WithLabelValues("clone_" + kind).Inc()
}
