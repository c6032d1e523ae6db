// Package upstream is the thin adapter for the "Upstream resolver
// collaborator" spec §6 describes: it turns a (qname, qtype, qclass,
// deadline) tuple into a dns.Client exchange against a configured list
// of true recursive resolvers, with per-server fallback and dedup of
// concurrently in-flight identical queries.
package upstream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"
	"github.com/sinkdns/sinkdns/policy"
	"github.com/sinkdns/sinkdns/util"
	"github.com/sinkdns/sinkdns/waitgroup"
)

// ErrNoUpstreamAnswered is returned when every configured server failed
// or timed out.
var ErrNoUpstreamAnswered = errors.New("upstream: no configured server answered")

var _ policy.Upstream = (*Client)(nil)

// Client is a policy.Upstream backed by github.com/miekg/dns. Grounded
// on the forwarder pattern: try each configured server in order, return
// the first that answers.
type Client struct {
	servers []string
	dedup   *waitgroup.WaitGroup
	results sync.Map // uint64 -> *policy.UpstreamResponse, in-flight only
}

// New builds a Client that forwards to servers (host:port form), using
// dedupTimeout as the upper bound an in-flight-query joiner will wait.
func New(servers []string, dedupTimeout time.Duration) *Client {
	return &Client{
		servers: servers,
		dedup:   waitgroup.New(dedupTimeout),
	}
}

// Send implements policy.Upstream.
func (c *Client) Send(ctx context.Context, name string, qtype, qclass uint16, deadline time.Duration) (*policy.UpstreamResponse, error) {
	key := hashKey(name, qtype, qclass)

	if c.dedup.Get(key) > 0 {
		c.dedup.Wait(key)
		if v, ok := c.results.LoadAndDelete(key); ok {
			return v.(*policy.UpstreamResponse), nil
		}
		// The leader's result was already claimed by another joiner;
		// fall through and issue our own exchange.
	}

	c.dedup.Add(key)

	resp, err := c.exchange(ctx, name, qtype, qclass, deadline)
	if err == nil {
		c.results.Store(key, resp)
	}

	c.dedup.Done(key)

	return resp, err
}

func (c *Client) exchange(ctx context.Context, name string, qtype, qclass uint16, deadline time.Duration) (*policy.UpstreamResponse, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qtype)
	req.Question[0].Qclass = qclass
	req.RecursionDesired = true

	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var lastErr error
	for _, server := range c.servers {
		resp, err := util.Exchange(cctx, req, server, "udp")
		if err != nil {
			lastErr = err
			continue
		}

		// A transport-level success can still carry a SERVFAIL (or other
		// error rcode) from this particular server; failover to the next
		// configured server rather than handing a failure back as if it
		// were the recursive resolver's final word.
		if util.ClassifyResponse(resp) == util.TypeServerFailure {
			lastErr = fmt.Errorf("upstream: %s returned rcode %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}

		return &policy.UpstreamResponse{
			Rcode:      resp.Rcode,
			Answer:     resp.Answer,
			Authority:  resp.Ns,
			Additional: stripOPT(resp.Extra),
		}, nil
	}

	if lastErr == nil {
		lastErr = ErrNoUpstreamAnswered
	}

	return nil, lastErr
}

// stripOPT removes the synthetic EDNS0 pseudo-record from Extra so it
// never gets treated as an ADDITIONAL glue record by censor-learn.
func stripOPT(extra []dns.RR) []dns.RR {
	if len(extra) == 0 {
		return nil
	}

	out := make([]dns.RR, 0, len(extra))
	for _, rr := range extra {
		if _, ok := rr.(*dns.OPT); ok {
			continue
		}
		out = append(out, rr)
	}

	return out
}

func hashKey(name string, qtype, qclass uint16) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(name)

	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], qtype)
	binary.BigEndian.PutUint16(buf[2:4], qclass)
	_, _ = h.Write(buf[:])

	return h.Sum64()
}
