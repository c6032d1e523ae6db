// Package pipeline implements QueryPipeline (C8), the single entry
// point that orchestrates one request end-to-end: handler chain,
// censor-learn, a bounded single reprocess, and final response
// assembly.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/censor"
	"github.com/sinkdns/sinkdns/metrics"
	"github.com/sinkdns/sinkdns/policy"
)

// QueryPipeline is C8.
type QueryPipeline struct {
	chain    *policy.HandlerChain
	learner  *censor.Learner
	deadline time.Duration

	metrics *metrics.Metrics
}

// New builds a QueryPipeline. deadline is the outer per-request
// deadline of spec §5 (default 10s).
func New(chain *policy.HandlerChain, learner *censor.Learner, deadline time.Duration) *QueryPipeline {
	return &QueryPipeline{chain: chain, learner: learner, deadline: deadline}
}

// SetMetrics wires an optional counter sink, kept additive so existing
// callers and tests that build a QueryPipeline without metrics are
// unaffected.
func (p *QueryPipeline) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Resolve is spec §4.7's resolve(qname, qtype, qclass) -> final_response.
// The returned message has no transaction ID set; the listener
// collaborator is responsible for echoing the original request's ID and
// question section onto the wire.
func (p *QueryPipeline) Resolve(ctx context.Context, qname string, qtype, qclass uint16) *dns.Msg {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	q := policy.Query{
		Name:  strings.ToLower(dns.Fqdn(qname)),
		Type:  qtype,
		Class: qclass,
	}

	v, source := p.chain.ResolveNamed(ctx, q)

	v, reprocess := p.learner.Apply(v)
	if reprocess {
		v, source = p.chain.ResolveNamed(ctx, q)
		// Bounded to a single restart (spec §4.6/invariant 7): any
		// further reprocess signal from this second pass is discarded.
		v, _ = p.learner.Apply(v)
	}

	if p.metrics != nil {
		defer func() { p.metrics.ObserveQuery(q.Type, v.Rcode, source) }()
	}

	if v.IsIgnore() {
		log.Crit("assertion failure: IGNORE verdict reached response assembly", "qname", q.Name)
		v = policy.Verdict{Rcode: dns.RcodeServerFailure}
	}

	if ctx.Err() != nil {
		log.Warn("pipeline deadline exceeded", "qname", q.Name)
		v = policy.Verdict{Rcode: dns.RcodeServerFailure}
	}

	return buildResponse(q, v)
}

func buildResponse(q policy.Query, v policy.Verdict) *dns.Msg {
	m := new(dns.Msg)
	m.Response = true
	m.Rcode = v.Rcode
	m.Authoritative = v.AA
	m.RecursionAvailable = v.RA
	m.AuthenticatedData = v.AD
	m.Question = []dns.Question{{Name: q.Name, Qtype: q.Type, Qclass: q.Class}}
	m.Answer = v.Answer
	m.Ns = v.Authority
	m.Extra = v.Additional

	return m
}
