package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/accesslist"
	"github.com/sinkdns/sinkdns/api"
	"github.com/sinkdns/sinkdns/censor"
	"github.com/sinkdns/sinkdns/config"
	"github.com/sinkdns/sinkdns/metrics"
	"github.com/sinkdns/sinkdns/pipeline"
	"github.com/sinkdns/sinkdns/policy"
	"github.com/sinkdns/sinkdns/server"
	"github.com/sinkdns/sinkdns/trie"
	"github.com/sinkdns/sinkdns/upstream"
)

const version = "1.0.0"

var (
	flagcfgpath  = flag.String("config", "sinkdns.conf", "location of the config file, if config file not found, a config will generate")
	flagprintver = flag.Bool("v", false, "show version information")

	cfg *config.Config
)

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintf(os.Stderr, "Example:\n%s -config=sinkdns.conf\n\n", os.Args[0])
	}
}

func setup() {
	var err error

	if cfg, err = config.Load(*flagcfgpath, version); err != nil {
		log.Crit("Config loading failed", "error", err.Error())
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	lvl, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		log.Crit("Log verbosity level unknown")
	}

	log.Root().SetLevel(lvl)
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StdoutHandler))
}

// buildTries loads the configured whitelist zones and blacklist
// entries into a fresh pair of tries.
func buildTries() (whitelist, blacklist *trie.DomainTrie) {
	whitelist = trie.New()
	for _, zone := range cfg.WhitelistZones {
		if _, err := whitelist.Add(zone, nil); err != nil {
			log.Error("skipping malformed whitelist zone", "zone", zone, "error", err.Error())
		}
	}

	blacklist = trie.New()
	for _, entry := range cfg.BlacklistEntries {
		if _, err := blacklist.Add(entry.Zone, trie.RRTemplates(entry.Templates())); err != nil {
			log.Error("skipping malformed blacklist zone", "zone", entry.Zone, "error", err.Error())
		}
	}

	return whitelist, blacklist
}

func run(apiCtx context.Context, watchStop chan struct{}) (*server.Server, *api.API) {
	whitelist, blacklist := buildTries()

	up := upstream.New(cfg.UpstreamServers, cfg.DedupWindow.Duration)

	chain := policy.NewHandlerChain(
		policy.NewWhitelistHandler(whitelist, up, cfg.UpstreamTimeout.Duration),
		policy.NewBlacklistHandler(blacklist),
		policy.NewRecursiveHandler(up, cfg.UpstreamTimeout.Duration),
	)

	learner := censor.New(whitelist, blacklist, cfg.AutoWhitelist, cfg.AutoBlacklist)

	m := metrics.New(prometheus.DefaultRegisterer)
	learner.SetMetrics(m)

	qp := pipeline.New(chain, learner, cfg.PipelineDeadline.Duration)
	qp.SetMetrics(m)

	al := accesslist.New(cfg.AccessList)

	srv := server.New(cfg.Bind, al, qp)
	srv.Run()

	a := api.New(cfg.API, whitelist, blacklist)
	a.Run(apiCtx)

	if w, err := config.NewWatcher(*flagcfgpath, whitelist, blacklist); err != nil {
		log.Warn("config watcher disabled", "error", err.Error())
	} else {
		go w.Run(watchStop)
	}

	return srv, a
}

func main() {
	flag.Parse()

	if *flagprintver {
		println("sinkdns v" + version)
		os.Exit(0)
	}

	log.Info("Starting sinkdns...", "version", version)

	setup()

	apiCtx, cancelAPI := context.WithCancel(context.Background())
	watchStop := make(chan struct{})

	run(apiCtx, watchStop)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	log.Info("Stopping sinkdns...")
	close(watchStop)
	cancelAPI()
}
