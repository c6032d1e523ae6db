// Package policy implements the handler-chain policy layer: the uniform
// (qname, qtype, qclass) -> Verdict contract, the whitelist/blacklist/
// recursive handlers that implement it, and the chain that resolves a
// query by running handlers in order until one answers.
package policy

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// IgnoreRcode is the private sentinel rcode a Handler returns to mean "not
// my concern, ask the next handler". It is never written to the wire; the
// number is one of the rcodes RFC 2929 reserves for future use, chosen so
// it can never collide with a real upstream or synthesized rcode.
const IgnoreRcode = 11

// Query is the normalized input to a Handler: qname already lowercased and
// in FQDN form, qtype/qclass as they arrived on the wire.
type Query struct {
	Name  string
	Type  uint16
	Class uint16
}

// Verdict is a handler's answer: either the private Ignore sentinel, or a
// packet_sections value ready for response assembly (rcode, the three
// record sections, and the header flags a response carries alongside
// them).
type Verdict struct {
	Rcode int

	Answer     []dns.RR
	Authority  []dns.RR
	Additional []dns.RR

	AA bool
	RA bool
	AD bool
}

// Ignore returns the sentinel verdict meaning "defer to the next handler".
func Ignore() Verdict {
	return Verdict{Rcode: IgnoreRcode}
}

// IsIgnore reports whether v is the sentinel verdict.
func (v Verdict) IsIgnore() bool {
	return v.Rcode == IgnoreRcode
}

// ServerFailure is the verdict handlers return when they cannot honor
// their own contract (upstream error, malformed template).
func ServerFailure() Verdict {
	return Verdict{Rcode: dns.RcodeServerFailure}
}

// Handler is the uniform policy contract every chain member implements.
type Handler interface {
	Name() string
	Handle(ctx context.Context, q Query) Verdict
}

// UpstreamResponse is what the Upstream collaborator returns for a
// successful exchange.
type UpstreamResponse struct {
	Rcode      int
	Answer     []dns.RR
	Authority  []dns.RR
	Additional []dns.RR
}

// Upstream is the external recursive resolver collaborator described by
// spec §6. WhitelistHandler and RecursiveHandler consult it; the concrete
// adapter lives in package upstream, which imports policy to implement
// this interface. policy itself never imports upstream.
type Upstream interface {
	Send(ctx context.Context, name string, qtype, qclass uint16, deadline time.Duration) (*UpstreamResponse, error)
}
