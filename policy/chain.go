package policy

import (
	"context"

	"github.com/miekg/dns"
)

// HandlerChain is C6: it runs its handlers in order and returns the first
// verdict whose rcode is not the Ignore sentinel. If every handler
// defers, the chain itself answers NXDOMAIN with empty sections — the
// spec's "no handler claimed this name" outcome, not a failure of any
// one handler.
type HandlerChain struct {
	handlers []Handler
}

// NewHandlerChain builds a chain that tries handlers in the given order.
func NewHandlerChain(handlers ...Handler) *HandlerChain {
	return &HandlerChain{handlers: handlers}
}

// Resolve runs the chain against q.
func (c *HandlerChain) Resolve(ctx context.Context, q Query) Verdict {
	v, _ := c.ResolveNamed(ctx, q)
	return v
}

// ResolveNamed is Resolve, additionally returning the name of the
// handler whose verdict was used (for metrics), or "none" when every
// handler deferred and the chain synthesized NXDOMAIN itself.
func (c *HandlerChain) ResolveNamed(ctx context.Context, q Query) (Verdict, string) {
	for _, h := range c.handlers {
		v := h.Handle(ctx, q)
		if !v.IsIgnore() {
			return v, h.Name()
		}
	}

	return Verdict{Rcode: dns.RcodeNameError}, "none"
}
