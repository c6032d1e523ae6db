/*
Package main implements sinkdns - a DNS sinkhole server that intercepts
blacklisted domains with synthetic answers, transparently resolves
whitelisted domains while stripping delegation glue, forwards everything
else upstream, and learns new blacklist/whitelist entries by inspecting
upstream AUTHORITY and ADDITIONAL sections.

sinkdns provides:

  - A reversed-label domain trie for whitelist/blacklist membership,
    with mandatory wildcard subsumption on insert
  - A first-non-ignore-wins policy chain: whitelist, then blacklist,
    then recursive resolution upstream
  - The censor-and-learn loop: AUTHORITY NS/SOA records from an
    upstream response are matched against both lists, and either the
    AUTHORITY/ADDITIONAL sections are scrubbed or a list entry is
    cloned onto a newly observed delegation
  - In-flight query deduplication against the upstream resolvers
  - IP-based access control via CIDR ranges
  - Prometheus metrics for query outcomes and censor-learn actions
  - A small HTTP admin surface for list management and an operational
    dump of the live tries
  - Hot-reload of the whitelist/blacklist from the config file via
    filesystem watch, with no process restart

Architecture:

sinkdns resolves every query through a single pipeline (QueryPipeline):

 1. HandlerChain - tries whitelist, blacklist, and recursive handlers
    in order, returning the first verdict that isn't a deferral
 2. Learner - matches the verdict's AUTHORITY records against both
    tries and scrubs AUTHORITY/ADDITIONAL or clones as needed
 3. A single bounded reprocess through the chain when the learner
    extended a list, so a freshly learned entry takes effect on the
    same query

Configuration:

sinkdns uses a TOML configuration file (default: sinkdns.conf) that
supports:

  - DNS and admin API bind addresses
  - Access list CIDRs
  - Upstream server addresses, timeout, and in-flight dedup window
  - Pipeline deadline
  - Whitelist zones and blacklist entries with per-type record templates
  - Auto-whitelist / auto-blacklist toggles for the learn loop
  - Logging level

Usage:

	sinkdns [flags]

Flags:

	-config string   Location of config file (default "sinkdns.conf")
	-v               Show version information

Example:

	# Start with default config
	sinkdns

	# Start with custom config
	sinkdns -config /etc/sinkdns/sinkdns.conf
*/
package main // import "github.com/sinkdns/sinkdns"
