package policy

import (
	"context"
	"strings"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/trie"
)

// BlacklistHandler is C4: for names matching the blacklist trie, it
// synthesizes a sinkhole answer from the matched zone's record templates
// rather than forwarding anything upstream.
type BlacklistHandler struct {
	trie *trie.DomainTrie
}

// NewBlacklistHandler builds a BlacklistHandler backed by t.
func NewBlacklistHandler(t *trie.DomainTrie) *BlacklistHandler {
	return &BlacklistHandler{trie: t}
}

func (h *BlacklistHandler) Name() string { return "blacklist" }

func (h *BlacklistHandler) Handle(_ context.Context, q Query) Verdict {
	zone, payload, matched := h.matchZone(q.Name)
	if !matched {
		return Ignore()
	}

	template, ok := payload[q.Type]
	if !ok {
		// The zone is blacklisted but carries no template for this
		// RRTYPE: spec §4.3 says this yields a plain NXDOMAIN, not a
		// failure — there is nothing malformed here.
		return Verdict{Rcode: dns.RcodeNameError}
	}

	answer, err := substituteOwner(template, q.Name)
	if err != nil {
		log.Error("malformed blacklist answer template", "zone", zone, "qtype", dns.TypeToString[q.Type], "error", err.Error())
		return ServerFailure()
	}

	nsTemplate, ok := payload[dns.TypeNS]
	if !ok {
		log.Error("blacklist zone missing NS template", "zone", zone)
		return ServerFailure()
	}

	nsOwner := strings.TrimPrefix(zone, "*.")

	nsRR, err := substituteOwner(nsTemplate, nsOwner)
	if err != nil {
		log.Error("malformed blacklist NS template", "zone", zone, "error", err.Error())
		return ServerFailure()
	}

	var additional []dns.RR
	if nsRecord, ok := nsRR.(*dns.NS); ok {
		if glueRR, ok := h.glueFor(nsRecord.Ns); ok {
			additional = append(additional, glueRR)
		}
	}

	return Verdict{
		Rcode:      dns.RcodeSuccess,
		Answer:     []dns.RR{answer},
		Authority:  []dns.RR{nsRR},
		Additional: additional,
	}
}

// matchZone runs the wildcard-enumeration candidate sequence against the
// blacklist trie and returns the first hit's key and payload.
func (h *BlacklistHandler) matchZone(name string) (zone string, payload trie.RRTemplates, ok bool) {
	for _, candidate := range trie.Candidates(name) {
		if data, hit := h.trie.LookupData(candidate); hit {
			return candidate, data, true
		}
	}
	return "", nil, false
}

// glueFor resolves nsTarget's own zone in the same trie and, if it carries
// an A template, synthesizes the glue record naming nsTarget itself.
func (h *BlacklistHandler) glueFor(nsTarget string) (dns.RR, bool) {
	_, payload, ok := h.matchZone(nsTarget)
	if !ok {
		return nil, false
	}

	aTemplate, ok := payload[dns.TypeA]
	if !ok {
		return nil, false
	}

	rr, err := substituteOwner(aTemplate, nsTarget)
	if err != nil {
		log.Error("malformed blacklist glue template", "target", nsTarget, "error", err.Error())
		return nil, false
	}

	return rr, true
}
