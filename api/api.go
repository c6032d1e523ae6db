// Package api exposes the optional admin surface spec §6 allows: Prometheus
// metrics and a line-oriented dump of the live policy tries for operational
// inspection. Neither is a compatibility surface the pipeline depends on.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/trie"
)

// API serves the HTTP admin surface alongside the DNS listener.
type API struct {
	addr      string
	router    *Router
	whitelist *trie.DomainTrie
	blacklist *trie.DomainTrie
}

// New builds an API bound to addr, exposing the given tries for
// management and dump. addr == "" disables the server entirely.
func New(addr string, whitelist, blacklist *trie.DomainTrie) *API {
	return &API{
		addr:      addr,
		router:    NewRouter(),
		whitelist: whitelist,
		blacklist: blacklist,
	}
}

func (a *API) metrics(ctx *Context) {
	promhttp.Handler().ServeHTTP(ctx.Writer, ctx.Request)
}

// dump writes one "zone\tpayload_json" line per entry in the named
// trie (spec §6's optional operational dump). Wildcard keys ("*.foo.")
// are included the same as exact ones — the dump is a raw listing of
// everything Add inserted, not a resynthesized policy view.
func (a *API) dump(list *trie.DomainTrie) Handler {
	return func(ctx *Context) {
		ctx.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")

		for _, zone := range list.Keys() {
			payload, _ := list.LookupData(zone)
			buf, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			_, _ = ctx.Writer.Write([]byte(zone + "\t" + string(buf) + "\n"))
		}
	}
}

func (a *API) addWhitelist(ctx *Context) {
	zone := dns.Fqdn(ctx.Param("zone"))
	_, err := a.whitelist.Add(zone, nil)
	a.writeAddResult(ctx, zone, err)
}

func (a *API) addBlacklist(ctx *Context) {
	zone := dns.Fqdn(ctx.Param("zone"))

	templates := trie.RRTemplates{}
	if aTemplate := ctx.Request.URL.Query().Get("a"); aTemplate != "" {
		templates[dns.TypeA] = aTemplate
	}
	if ns := ctx.Request.URL.Query().Get("ns"); ns != "" {
		templates[dns.TypeNS] = ns
	}

	_, err := a.blacklist.Add(zone, templates)
	a.writeAddResult(ctx, zone, err)
}

func (a *API) writeAddResult(ctx *Context, zone string, err error) {
	if err != nil {
		ctx.JSON(http.StatusBadRequest, Json{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, Json{"zone": zone, "success": true})
}

func (a *API) removeWhitelist(ctx *Context) {
	zone := dns.Fqdn(ctx.Param("zone"))
	err := a.whitelist.Remove(zone)
	a.writeAddResult(ctx, zone, err)
}

func (a *API) removeBlacklist(ctx *Context) {
	zone := dns.Fqdn(ctx.Param("zone"))
	err := a.blacklist.Remove(zone)
	a.writeAddResult(ctx, zone, err)
}

// Run starts the HTTP server and stops it when ctx is canceled.
func (a *API) Run(ctx context.Context) {
	if a.addr == "" {
		return
	}

	a.router.GET("/metrics", a.metrics)

	whitelist := a.router.Group("/api/v1/whitelist")
	{
		whitelist.GET("/add/:zone", a.addWhitelist)
		whitelist.GET("/remove/:zone", a.removeWhitelist)
		whitelist.GET("/dump", a.dump(a.whitelist))
	}

	blacklist := a.router.Group("/api/v1/blacklist")
	{
		blacklist.GET("/add/:zone", a.addBlacklist)
		blacklist.GET("/remove/:zone", a.removeBlacklist)
		blacklist.GET("/dump", a.dump(a.blacklist))
	}

	srv := &http.Server{
		Addr:    a.addr,
		Handler: a.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Start API server failed", "error", err.Error())
		}
	}()

	log.Info("API server listening...", "addr", a.addr)

	go func() {
		<-ctx.Done()

		log.Info("API server stopping...", "addr", a.addr)

		apiCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(apiCtx); err != nil {
			log.Error("Shutdown API server failed:", "error", err.Error())
		}
	}()
}
