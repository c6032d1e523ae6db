package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/sinkdns/sinkdns/trie"
)

// fakeUpstream is a scripted Upstream double: queued responses are
// returned in call order, or the queued error if one is set.
type fakeUpstream struct {
	responses []*UpstreamResponse
	errs      []error
	calls     []Query
}

func (f *fakeUpstream) Send(_ context.Context, name string, qtype, qclass uint16, _ time.Duration) (*UpstreamResponse, error) {
	f.calls = append(f.calls, Query{Name: name, Type: qtype, Class: qclass})

	i := len(f.calls) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &UpstreamResponse{Rcode: dns.RcodeSuccess}, nil
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	assert.NoError(t, err)
	return rr
}

func Test_WhitelistHandler_NoMatchIgnores(t *testing.T) {
	h := NewWhitelistHandler(trie.New(), &fakeUpstream{}, time.Second)
	v := h.Handle(context.Background(), Query{Name: "example.com.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.True(t, v.IsIgnore())
}

func Test_WhitelistHandler_MatchForwardsAndStripsGlue(t *testing.T) {
	tr := trie.New()
	_, err := tr.Add("microsoft.com", nil)
	assert.NoError(t, err)

	up := &fakeUpstream{responses: []*UpstreamResponse{{
		Rcode:     dns.RcodeSuccess,
		Answer:    []dns.RR{mustRR(t, "www.microsoft.com. 60 IN A 20.1.2.3")},
		Authority: []dns.RR{mustRR(t, "microsoft.com. 60 IN NS ns1.msft.net.")},
	}}}

	h := NewWhitelistHandler(tr, up, time.Second)
	v := h.Handle(context.Background(), Query{Name: "www.microsoft.com.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.Equal(t, dns.RcodeSuccess, v.Rcode)
	assert.Len(t, v.Answer, 1)
	assert.Empty(t, v.Authority)
	assert.Empty(t, v.Additional)
	assert.True(t, v.RA)
}

func Test_WhitelistHandler_UpstreamFailureIsServFailNotIgnore(t *testing.T) {
	tr := trie.New()
	_, _ = tr.Add("microsoft.com", nil)

	up := &fakeUpstream{errs: []error{errors.New("boom")}}
	h := NewWhitelistHandler(tr, up, time.Second)
	v := h.Handle(context.Background(), Query{Name: "microsoft.com.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.False(t, v.IsIgnore())
	assert.Equal(t, dns.RcodeServerFailure, v.Rcode)
}

func blacklistTrie(t *testing.T) *trie.DomainTrie {
	t.Helper()
	tr := trie.New()

	_, err := tr.Add("dyndns.org", trie.RRTemplates{
		dns.TypeA:  "* 86400 IN A 10.1.2.3",
		dns.TypeNS: "* 86400 IN NS ns.sinkhole.example.com",
	})
	assert.NoError(t, err)

	_, err = tr.Add("ns.sinkhole.example.com", trie.RRTemplates{
		dns.TypeA: "* 86400 IN A 10.1.2.3",
	})
	assert.NoError(t, err)

	return tr
}

func Test_BlacklistHandler_Scenario1_SubdomainViaWildcard(t *testing.T) {
	h := NewBlacklistHandler(blacklistTrie(t))
	v := h.Handle(context.Background(), Query{Name: "mtfnpy.dyndns.org.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.Equal(t, dns.RcodeSuccess, v.Rcode)
	assert.Equal(t, []dns.RR{mustRR(t, "mtfnpy.dyndns.org. 86400 IN A 10.1.2.3")}, v.Answer)
	assert.Equal(t, []dns.RR{mustRR(t, "dyndns.org. 86400 IN NS ns.sinkhole.example.com.")}, v.Authority)
	assert.Equal(t, []dns.RR{mustRR(t, "ns.sinkhole.example.com. 86400 IN A 10.1.2.3")}, v.Additional)
}

func Test_BlacklistHandler_Scenario2_ExactZone(t *testing.T) {
	h := NewBlacklistHandler(blacklistTrie(t))
	v := h.Handle(context.Background(), Query{Name: "dyndns.org.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.Equal(t, dns.RcodeSuccess, v.Rcode)
	assert.Equal(t, []dns.RR{mustRR(t, "dyndns.org. 86400 IN A 10.1.2.3")}, v.Answer)
	assert.Equal(t, []dns.RR{mustRR(t, "dyndns.org. 86400 IN NS ns.sinkhole.example.com.")}, v.Authority)
}

func Test_BlacklistHandler_NoHeaderFlagsForced(t *testing.T) {
	h := NewBlacklistHandler(blacklistTrie(t))
	v := h.Handle(context.Background(), Query{Name: "dyndns.org.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.False(t, v.AA, "spec §4.3 step 5: rcode = NOERROR, no header flags are forced")
}

func Test_BlacklistHandler_NoMatchIgnores(t *testing.T) {
	h := NewBlacklistHandler(blacklistTrie(t))
	v := h.Handle(context.Background(), Query{Name: "mtfnpy.org.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.True(t, v.IsIgnore())
}

func Test_BlacklistHandler_MissingQtypeTemplateIsNXDomain(t *testing.T) {
	h := NewBlacklistHandler(blacklistTrie(t))
	v := h.Handle(context.Background(), Query{Name: "dyndns.org.", Type: dns.TypeAAAA, Class: dns.ClassINET})
	assert.Equal(t, dns.RcodeNameError, v.Rcode)
}

func Test_BlacklistHandler_MissingNSTemplateIsServFail(t *testing.T) {
	tr := trie.New()
	_, _ = tr.Add("noglue.test", trie.RRTemplates{dns.TypeA: "* 60 IN A 10.0.0.1"})

	h := NewBlacklistHandler(tr)
	v := h.Handle(context.Background(), Query{Name: "noglue.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, dns.RcodeServerFailure, v.Rcode)
}

func Test_RecursiveHandler_NeverIgnores(t *testing.T) {
	up := &fakeUpstream{responses: []*UpstreamResponse{{Rcode: dns.RcodeNameError}}}
	h := NewRecursiveHandler(up, time.Second)
	v := h.Handle(context.Background(), Query{Name: "anything.test.", Type: dns.TypeA, Class: dns.ClassINET})

	assert.False(t, v.IsIgnore())
	assert.Equal(t, dns.RcodeNameError, v.Rcode)
	assert.True(t, v.RA)
}

func Test_RecursiveHandler_TransportErrorIsServFail(t *testing.T) {
	up := &fakeUpstream{errs: []error{errors.New("timeout")}}
	h := NewRecursiveHandler(up, time.Second)
	v := h.Handle(context.Background(), Query{Name: "anything.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, dns.RcodeServerFailure, v.Rcode)
}

type scriptedHandler struct {
	name string
	v    Verdict
}

func (s scriptedHandler) Name() string { return s.name }
func (s scriptedHandler) Handle(context.Context, Query) Verdict { return s.v }

func Test_HandlerChain_FirstNonIgnoreWins(t *testing.T) {
	chain := NewHandlerChain(
		scriptedHandler{"h1", Ignore()},
		scriptedHandler{"h2", Verdict{Rcode: dns.RcodeSuccess, Answer: []dns.RR{mustRR(t, "a.test. 60 IN A 1.2.3.4")}}},
		scriptedHandler{"h3", Verdict{Rcode: dns.RcodeSuccess, Answer: []dns.RR{mustRR(t, "b.test. 60 IN A 5.6.7.8")}}},
	)

	v := chain.Resolve(context.Background(), Query{Name: "a.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, []dns.RR{mustRR(t, "a.test. 60 IN A 1.2.3.4")}, v.Answer)
}

func Test_HandlerChain_AllIgnoreYieldsNXDomain(t *testing.T) {
	chain := NewHandlerChain(scriptedHandler{"h1", Ignore()}, scriptedHandler{"h2", Ignore()})

	v := chain.Resolve(context.Background(), Query{Name: "nowhere.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, dns.RcodeNameError, v.Rcode)
	assert.Empty(t, v.Answer)
	assert.Empty(t, v.Authority)
	assert.Empty(t, v.Additional)
}

func Test_HandlerChain_ResolveNamed_ReportsAnsweringHandler(t *testing.T) {
	chain := NewHandlerChain(
		scriptedHandler{"h1", Ignore()},
		scriptedHandler{"h2", Verdict{Rcode: dns.RcodeSuccess}},
	)

	_, source := chain.ResolveNamed(context.Background(), Query{Name: "a.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, "h2", source)
}

func Test_HandlerChain_ResolveNamed_ReportsNoneWhenAllIgnore(t *testing.T) {
	chain := NewHandlerChain(scriptedHandler{"h1", Ignore()})

	_, source := chain.ResolveNamed(context.Background(), Query{Name: "nowhere.test.", Type: dns.TypeA, Class: dns.ClassINET})
	assert.Equal(t, "none", source)
}
