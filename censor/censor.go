// Package censor implements the censor-and-learn loop: it inspects a
// chosen response's AUTHORITY records against the whitelist and
// blacklist tries, decides whether the response needs scrubbing, and
// optionally extends either policy set by cloning an ancestor's payload
// onto the zone or nameserver that the same set does not cover yet.
package censor

import (
	"github.com/miekg/dns"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/metrics"
	"github.com/sinkdns/sinkdns/policy"
	"github.com/sinkdns/sinkdns/trie"
)

// Learner is C7: CensorLearn. It holds non-owning references to the
// whitelist and blacklist tries — it only ever mutates them through
// trie.DomainTrie.CloneRecord.
type Learner struct {
	whitelist *trie.DomainTrie
	blacklist *trie.DomainTrie

	autoWhitelist bool
	autoBlacklist bool

	metrics *metrics.Metrics
}

// SetMetrics wires an optional counter sink. A Learner with no metrics
// attached behaves exactly as before; this keeps metrics an additive
// concern rather than a constructor-breaking one.
func (l *Learner) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// New builds a Learner over the given tries. autoWhitelist/autoBlacklist
// correspond to the Runtime flags of the same name in spec §6.
func New(whitelist, blacklist *trie.DomainTrie, autoWhitelist, autoBlacklist bool) *Learner {
	return &Learner{
		whitelist:     whitelist,
		blacklist:     blacklist,
		autoWhitelist: autoWhitelist,
		autoBlacklist: autoBlacklist,
	}
}

// Apply inspects v's AUTHORITY section per the decision matrix in spec
// §4.6 and returns the (possibly scrubbed) verdict along with whether
// the caller should re-run the handler chain. Scrubbing empties both
// AUTHORITY and ADDITIONAL and stops iterating further records; any
// other action continues to the next AUTHORITY record.
func (l *Learner) Apply(v policy.Verdict) (policy.Verdict, bool) {
	reprocess := false

	for _, rr := range v.Authority {
		zone, ns, ok := zoneAndNS(rr)
		if !ok {
			continue
		}

		blNSAnc, blNSOk := matchCandidate(l.blacklist, ns)
		blZoneAnc, blZoneOk := matchCandidate(l.blacklist, zone)
		wlNSAnc, wlNSOk := matchCandidate(l.whitelist, ns)
		_, wlZoneOk := matchCandidate(l.whitelist, zone)

		switch {
		case wlZoneOk && !wlNSOk:
			log.Warn("whitelisted zone served by non-whitelisted nameserver", "zone", zone, "ns", ns)

		case !wlZoneOk && wlNSOk && l.autoWhitelist:
			if err := l.whitelist.CloneRecord(wlNSAnc, zone); err != nil {
				log.Error("whitelist auto-extend failed", "src", wlNSAnc, "dst", zone, "error", err.Error())
				continue
			}
			if l.metrics != nil {
				l.metrics.ObserveClone("whitelist")
			}
			reprocess = true

		case blNSOk && !blZoneOk && l.autoBlacklist:
			if err := l.blacklist.CloneRecord(blNSAnc, zone); err != nil {
				log.Error("blacklist auto-extend failed", "src", blNSAnc, "dst", zone, "error", err.Error())
				continue
			}
			if l.metrics != nil {
				l.metrics.ObserveClone("blacklist")
			}
			reprocess = true

		case !blNSOk && blZoneOk && l.autoBlacklist:
			if err := l.blacklist.CloneRecord(blZoneAnc, ns); err != nil {
				log.Error("blacklist auto-extend failed", "src", blZoneAnc, "dst", ns, "error", err.Error())
				continue
			}
			if l.metrics != nil {
				l.metrics.ObserveClone("blacklist")
			}
			reprocess = true

		case !wlZoneOk && !wlNSOk && !blZoneOk && !blNSOk:
			v.Authority = nil
			v.Additional = nil
			if l.metrics != nil {
				l.metrics.ObserveScrub()
			}
			return v, reprocess

		default:
			// Touched by a policy but no action applies: leave as is.
		}
	}

	return v, reprocess
}

// zoneAndNS recognizes the two AUTHORITY record shapes spec §4.6 cares
// about: NS (owner=zone, target=nsdname) and SOA (owner=zone,
// target=mname).
func zoneAndNS(rr dns.RR) (zone, ns string, ok bool) {
	switch r := rr.(type) {
	case *dns.NS:
		return r.Hdr.Name, r.Ns, true
	case *dns.SOA:
		return r.Hdr.Name, r.Ns, true
	default:
		return "", "", false
	}
}

// matchCandidate runs the wildcard-enumeration candidate sequence for
// name against tr and returns the first hit's canonical key.
func matchCandidate(tr *trie.DomainTrie, name string) (string, bool) {
	for _, candidate := range trie.Candidates(name) {
		if key, ok := tr.Lookup(candidate); ok {
			return key, true
		}
	}
	return "", false
}
