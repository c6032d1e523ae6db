package policy

import (
	"context"
	"time"

	"github.com/semihalev/log"
)

// RecursiveHandler is C5: the catch-all forwarder. It never returns
// Ignore — every query that reaches it gets an answer, a synthesized
// failure, or an upstream's own response verbatim.
type RecursiveHandler struct {
	upstream Upstream
	timeout  time.Duration
}

// NewRecursiveHandler builds a RecursiveHandler that forwards through up
// with the given per-call deadline.
func NewRecursiveHandler(up Upstream, timeout time.Duration) *RecursiveHandler {
	return &RecursiveHandler{upstream: up, timeout: timeout}
}

func (h *RecursiveHandler) Name() string { return "recursive" }

func (h *RecursiveHandler) Handle(ctx context.Context, q Query) Verdict {
	resp, err := h.upstream.Send(ctx, q.Name, q.Type, q.Class, h.timeout)
	if err != nil {
		log.Warn("recursive upstream exchange failed", "qname", q.Name, "error", err.Error())
		return ServerFailure()
	}

	return Verdict{
		Rcode:      resp.Rcode,
		Answer:     resp.Answer,
		Authority:  resp.Authority,
		Additional: resp.Additional,
		RA:         true,
	}
}
