// Package trie implements the case-folded, reversed-label domain trie that
// backs the whitelist and blacklist policy stores: a set of domain keys with
// an optional per-key payload, mandatory wildcard subsumption on insert, and
// longest-suffix wildcard lookup via the Candidates enumeration helper.
package trie

import (
	"errors"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// ErrRefInputRejected is returned by a mutator when name cannot be turned
// into a domain key (the empty string, or the bare root).
var ErrRefInputRejected = errors.New("trie: ref input rejected")

// ErrUnsupported is returned by operations the trie deliberately does not
// implement.
var ErrUnsupported = errors.New("trie: operation not supported")

// RRTemplates maps an RRTYPE to a record template whose owner-name field is
// the literal "*", substituted by the caller at synthesis time. A nil
// RRTemplates is a valid payload: it marks presence only, the shape a
// whitelist entry uses.
type RRTemplates map[uint16]string

// Clone returns a shallow copy. Template strings are immutable after load,
// so copying the map is enough to give the clone independent identity.
func (t RRTemplates) Clone() RRTemplates {
	if t == nil {
		return nil
	}

	c := make(RRTemplates, len(t))
	for rrtype, template := range t {
		c[rrtype] = template
	}

	return c
}

type node struct {
	children map[string]*node
	payload  RRTemplates
	isEnd    bool
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// DomainTrie is safe for concurrent use: readers take the shared lock,
// Add/CloneRecord/Remove take the exclusive one.
type DomainTrie struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty trie.
func New() *DomainTrie {
	return &DomainTrie{root: newNode()}
}

// canonicalLabels folds name to lowercase FQDN form and splits it into
// left-to-right domain labels, along with the canonical (dotted, trailing
// dot) string form.
func canonicalLabels(name string) (labels []string, canon string, err error) {
	if name == "" {
		return nil, "", ErrRefInputRejected
	}

	canon = strings.ToLower(dns.Fqdn(name))

	trimmed := strings.TrimSuffix(canon, ".")
	if trimmed == "" {
		return nil, "", ErrRefInputRejected
	}

	return strings.Split(trimmed, "."), canon, nil
}

// reversePath turns left-to-right domain labels into the root-first trie
// path (e.g. [www example com] -> [com example www]).
func reversePath(labels []string) []string {
	path := make([]string, len(labels))
	for i, label := range labels {
		path[len(labels)-1-i] = label
	}
	return path
}

func (t *DomainTrie) insert(path []string, payload RRTemplates) {
	n := t.root
	for _, label := range path {
		child, ok := n.children[label]
		if !ok {
			child = newNode()
			n.children[label] = child
		}
		n = child
	}

	n.isEnd = true
	n.payload = payload
}

// Add inserts name and, mandatorily, its wildcard form "*."+name, both
// carrying payload. It returns the two canonical keys inserted. Idempotent:
// re-adding the same name with the same payload leaves the trie unchanged.
func (t *DomainTrie) Add(name string, payload RRTemplates) ([]string, error) {
	labels, canon, err := canonicalLabels(name)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.insert(reversePath(labels), payload)

	wildLabels := make([]string, 0, len(labels)+1)
	wildLabels = append(wildLabels, "*")
	wildLabels = append(wildLabels, labels...)
	wildCanon := "*." + canon

	t.insert(reversePath(wildLabels), payload)

	return []string{canon, wildCanon}, nil
}

func (t *DomainTrie) find(name string) (*node, string, bool) {
	labels, canon, err := canonicalLabels(name)
	if err != nil {
		return nil, "", false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	for _, label := range reversePath(labels) {
		child, ok := n.children[label]
		if !ok {
			return nil, "", false
		}
		n = child
	}

	if !n.isEnd {
		return nil, "", false
	}

	return n, canon, true
}

// Lookup is an exact lookup (no wildcard fallback): it returns the
// canonical key if name's own path exists with an end-marker.
func (t *DomainTrie) Lookup(name string) (string, bool) {
	_, canon, ok := t.find(name)
	return canon, ok
}

// LookupData is Lookup, returning the stored payload instead of the key.
func (t *DomainTrie) LookupData(name string) (RRTemplates, bool) {
	n, _, ok := t.find(name)
	if !ok {
		return nil, false
	}
	return n.payload, true
}

// CloneRecord copies src's payload onto dst (inserting dst + "*."+dst). If
// src has no payload, this is a no-op insert of dst. Idempotent: two
// successive CloneRecord(src, dst) calls leave the trie in the same state
// as one.
func (t *DomainTrie) CloneRecord(src, dst string) error {
	payload, _ := t.LookupData(src)

	_, err := t.Add(dst, payload)
	return err
}

// Remove deletes name's end-marker and payload, along with its wildcard
// form. Removal is optional per the trie's contract; provided here for
// deployments that need list revocation. Intermediate nodes are left in
// place (harmless: they carry no end-marker of their own).
func (t *DomainTrie) Remove(name string) error {
	labels, _, err := canonicalLabels(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.unmark(reversePath(labels))

	wildLabels := make([]string, 0, len(labels)+1)
	wildLabels = append(wildLabels, "*")
	wildLabels = append(wildLabels, labels...)
	t.unmark(reversePath(wildLabels))

	return nil
}

func (t *DomainTrie) unmark(path []string) {
	n := t.root
	for _, label := range path {
		child, ok := n.children[label]
		if !ok {
			return
		}
		n = child
	}

	n.isEnd = false
	n.payload = nil
}

// Merge is intentionally unsupported: bulk-merging entries from a foreign
// trie would bypass the wildcard-subsumption invariant Add enforces on
// every insert.
func (t *DomainTrie) Merge(*DomainTrie) error {
	return ErrUnsupported
}

// Keys returns the canonical dotted name of every entry the trie
// holds, wildcard keys ("*.example.com.") included, in no particular
// order. Used by the operational dump endpoint, not by resolution.
func (t *DomainTrie) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []string
	walkKeys(t.root, nil, &keys)
	return keys
}

func walkKeys(n *node, path []string, keys *[]string) {
	if n.isEnd {
		*keys = append(*keys, canonicalFromPath(path))
	}
	for label, child := range n.children {
		walkKeys(child, append(path, label), keys)
	}
}

// canonicalFromPath turns a root-first trie path back into a
// left-to-right dotted domain name.
func canonicalFromPath(path []string) string {
	labels := make([]string, len(path))
	for i, label := range path {
		labels[len(path)-1-i] = label
	}
	return strings.Join(labels, ".") + "."
}

// Reset discards every entry, leaving the trie empty. Used by config
// reload to repopulate a list in place without handing callers a new
// *DomainTrie (and thus a new pointer every handler would need to
// re-learn about).
func (t *DomainTrie) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = newNode()
}

// Candidates returns the longest-suffix wildcard match candidate sequence
// for qname: the exact name itself, then progressively broader wildcards
// toward (but never including) the root — for "a.b.c.d." that is
// [a.b.c.d., *.a.b.c.d., *.b.c.d., *.c.d., *.d.]. Handlers take the first
// candidate present in their trie; this helper performs no trie lookups
// itself.
func Candidates(qname string) []string {
	labels, canon, err := canonicalLabels(qname)
	if err != nil {
		return nil
	}

	candidates := make([]string, 0, len(labels)+1)
	candidates = append(candidates, canon)

	for i := 0; i < len(labels); i++ {
		candidates = append(candidates, "*."+strings.Join(labels[i:], ".")+".")
	}

	return candidates
}
