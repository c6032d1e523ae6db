// Package server implements the external Listener collaborator of
// spec §6: a plain UDP/TCP dns.Server wrapping QueryPipeline.Resolve,
// echoing the original transaction ID and question section onto the
// wire the way a dns.ResponseWriter caller expects.
package server

import (
	"context"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/accesslist"
	"github.com/sinkdns/sinkdns/pipeline"
)

// Server is the DNS listener. It holds no policy state of its own —
// every decision is delegated to the pipeline.
type Server struct {
	addr string

	accessList *accesslist.AccessList
	pipeline   *pipeline.QueryPipeline
}

// New builds a Server listening on addr.
func New(addr string, al *accesslist.AccessList, p *pipeline.QueryPipeline) *Server {
	if addr == "" {
		addr = ":53"
	}

	return &Server{addr: addr, accessList: al, pipeline: p}
}

// ServeDNS implements dns.Handler. It recovers from a panic in any
// collaborator rather than taking the whole process down with it —
// one malformed query or a bug in a new handler should degrade to a
// dropped connection, not an outage.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Crit("panic recovered while serving query", "panic", rec)
		}
	}()

	if len(r.Question) != 1 {
		return
	}

	if !s.accessList.Allowed(w.RemoteAddr()) {
		return
	}

	q := r.Question[0]

	resp := s.pipeline.Resolve(context.Background(), q.Name, q.Qtype, q.Qclass)
	resp.Id = r.Id
	resp.Question = r.Question

	if err := w.WriteMsg(resp); err != nil {
		log.Warn("failed to write response", "error", err.Error())
	}
}

// Run starts the UDP and TCP listeners. Each runs in its own
// goroutine and logs (rather than panics) on failure, so one
// transport's bind error does not prevent the other from serving.
func (s *Server) Run() {
	go s.ListenAndServeDNS("udp")
	go s.ListenAndServeDNS("tcp")
}

// ListenAndServeDNS starts a server on the given network ("udp" or
// "tcp"), invoking ServeDNS for incoming queries.
func (s *Server) ListenAndServeDNS(network string) {
	log.Info("DNS server listening...", "net", network, "addr", s.addr)

	srv := &dns.Server{
		Addr:          s.addr,
		Net:           network,
		Handler:       s,
		MaxTCPQueries: 2048,
		ReusePort:     true,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("DNS listener failed", "net", network, "addr", s.addr, "error", err.Error())
	}
}
