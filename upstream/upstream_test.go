package upstream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, handler dns.HandlerFunc) (addr string, shutdown func()) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()

	return pc.LocalAddr().String(), func() { _ = srv.Shutdown() }
}

// deadServer returns an address nothing is listening on, so exchanges
// against it fail fast (connection refused) instead of timing out.
func deadServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())

	return addr
}

func Test_Client_Send_ReturnsUpstreamAnswer(t *testing.T) {
	addr, shutdown := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		rr, _ := dns.NewRR(r.Question[0].Name + " 60 IN A 203.0.113.9")
		m.Answer = append(m.Answer, rr)
		_ = w.WriteMsg(m)
	}))
	defer shutdown()

	c := New([]string{addr}, time.Second)
	resp, err := c.Send(context.Background(), "example.test.", dns.TypeA, dns.ClassINET, time.Second)

	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
}

func Test_Client_Send_FallsBackToNextServer(t *testing.T) {
	addr, shutdown := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		_ = w.WriteMsg(m)
	}))
	defer shutdown()

	c := New([]string{deadServer(t), addr}, 2*time.Second)
	resp, err := c.Send(context.Background(), "example.test.", dns.TypeA, dns.ClassINET, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
}

func Test_Client_Send_FailsOverOnContentLevelServfail(t *testing.T) {
	badAddr, badShutdown := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeServerFailure)
		_ = w.WriteMsg(m)
	}))
	defer badShutdown()

	goodAddr, goodShutdown := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		rr, _ := dns.NewRR(r.Question[0].Name + " 60 IN A 203.0.113.9")
		m.Answer = append(m.Answer, rr)
		_ = w.WriteMsg(m)
	}))
	defer goodShutdown()

	c := New([]string{badAddr, goodAddr}, 2*time.Second)
	resp, err := c.Send(context.Background(), "example.test.", dns.TypeA, dns.ClassINET, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
}

func Test_Client_Send_AllServersFail(t *testing.T) {
	c := New([]string{deadServer(t)}, 2*time.Second)
	_, err := c.Send(context.Background(), "example.test.", dns.TypeA, dns.ClassINET, 2*time.Second)
	assert.Error(t, err)
}

func Test_Client_Send_DedupesConcurrentIdenticalQueries(t *testing.T) {
	var calls int
	addr, shutdown := startTestServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		calls++
		time.Sleep(20 * time.Millisecond)
		m := new(dns.Msg)
		m.SetReply(r)
		_ = w.WriteMsg(m)
	}))
	defer shutdown()

	c := New([]string{addr}, time.Second)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Send(context.Background(), "dup.test.", dns.TypeA, dns.ClassINET, time.Second)
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	<-done
	<-done
}

func Test_StripOPT_RemovesOnlyOPT(t *testing.T) {
	a, err := dns.NewRR("glue.test. 60 IN A 10.0.0.1")
	require.NoError(t, err)

	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT

	out := stripOPT([]dns.RR{a, opt})
	assert.Equal(t, []dns.RR{a}, out)
}

func Test_HashKey_DeterministicAndDistinguishesQtype(t *testing.T) {
	k1 := hashKey("example.com.", dns.TypeA, dns.ClassINET)
	k2 := hashKey("example.com.", dns.TypeA, dns.ClassINET)
	k3 := hashKey("example.com.", dns.TypeAAAA, dns.ClassINET)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
