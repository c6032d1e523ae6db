package policy

import (
	"context"
	"time"

	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/trie"
)

// WhitelistHandler is C3: for names that match the whitelist trie, it
// forwards the query upstream and returns the ANSWER section verbatim,
// stripping AUTHORITY/ADDITIONAL so no delegation glue for a whitelisted
// name ever reaches the client. Names it does not match are Ignore.
type WhitelistHandler struct {
	trie     *trie.DomainTrie
	upstream Upstream
	timeout  time.Duration
}

// NewWhitelistHandler builds a WhitelistHandler backed by t, querying up
// with the given per-call deadline.
func NewWhitelistHandler(t *trie.DomainTrie, up Upstream, timeout time.Duration) *WhitelistHandler {
	return &WhitelistHandler{trie: t, upstream: up, timeout: timeout}
}

func (h *WhitelistHandler) Name() string { return "whitelist" }

func (h *WhitelistHandler) Handle(ctx context.Context, q Query) Verdict {
	matched := false
	for _, candidate := range trie.Candidates(q.Name) {
		if _, ok := h.trie.Lookup(candidate); ok {
			matched = true
			break
		}
	}

	if !matched {
		return Ignore()
	}

	resp, err := h.upstream.Send(ctx, q.Name, q.Type, q.Class, h.timeout)
	if err != nil {
		log.Warn("whitelist upstream exchange failed", "qname", q.Name, "error", err.Error())
		return ServerFailure()
	}

	return Verdict{
		Rcode:  resp.Rcode,
		Answer: resp.Answer,
		RA:     true,
	}
}
