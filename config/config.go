package config

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/miekg/dns"
	"github.com/semihalev/log"
)

const configver = "1.0.0"

// Config holds everything needed to build a running sinkhole: listener
// addresses, the policy zones themselves, and the censor-learn flags
// that decide whether observed upstream delegations silently extend
// those zones.
type Config struct {
	Version string

	Bind string
	API  string

	LogLevel   string
	AccessList []string

	// UpstreamServers is tried in order for every name that neither
	// policy list claims, and for the whitelist handler's forwarded
	// queries. "host:port", matching dns.Client's Exchange addr form.
	UpstreamServers []string
	UpstreamTimeout Duration

	// PipelineDeadline is the outer per-request budget (spec §5): the
	// handler chain, censor-learn, and the bounded reprocess pass must
	// all complete within it.
	PipelineDeadline Duration

	// DedupWindow bounds how long a leader query holds joiners waiting
	// on an identical in-flight upstream exchange.
	DedupWindow Duration

	// WhitelistZones are zones transparently resolved upstream with
	// delegation glue stripped before assembly (spec §4.2). A plain
	// zone name; no templates needed since nothing is synthesized.
	WhitelistZones []string

	// BlacklistEntries are zones answered entirely from local
	// templates (spec §4.3). A and NS are RR templates whose owner
	// field must be the literal "*", substituted at synthesis time.
	BlacklistEntries []ZoneTemplate `toml:"blacklist"`

	// AutoWhitelist/AutoBlacklist gate the two auto-extend rows of the
	// censor-learn decision matrix (spec §4.6).
	AutoWhitelist bool
	AutoBlacklist bool

	sVersion string
}

// ZoneTemplate is one [[blacklist]] TOML table.
type ZoneTemplate struct {
	Zone string
	A    string
	NS   string
}

// Templates turns a ZoneTemplate into the trie.RRTemplates shape,
// keyed by the RR types the sinkhole actually synthesizes.
func (z ZoneTemplate) Templates() map[uint16]string {
	t := make(map[uint16]string, 2)
	if z.A != "" {
		t[dns.TypeA] = z.A
	}
	if z.NS != "" {
		t[dns.TypeNS] = z.NS
	}
	return t
}

// ServerVersion returns the version the binary was built with, not
// the config file's schema version.
func (c *Config) ServerVersion() string {
	return c.sVersion
}

// Duration wraps time.Duration so it can be parsed from a TOML string
// like "10s" instead of a raw integer of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address to bind to for the DNS server
bind = ":53"

# Address to bind to for the http API server (serves /metrics and
# policy administration routes), left blank for disabled
api = "127.0.0.1:8080"

# What kind of information should be logged, log verbosity level
# [crit,error,warn,info,debug]
loglevel = "info"

# Which clients are allowed to make queries
accesslist = [
"0.0.0.0/0",
"::0/0"
]

# Upstream resolvers tried in order for names neither policy list
# claims, and for the whitelist handler's own lookups.
upstreamservers = [
"9.9.9.9:53",
"1.1.1.1:53"
]

# Network timeout for each upstream exchange
upstreamtimeout = "3s"

# Outer per-request deadline: chain + censor-learn + one bounded
# reprocess pass must all finish within this
pipelinedeadline = "10s"

# How long a leader query holds joiners waiting on an identical
# in-flight upstream exchange before giving up and issuing their own
dedupwindow = "2s"

# Zones resolved transparently upstream with delegation glue stripped
whitelistzones = [
]

# Zones answered entirely from local templates. Example:
# [[blacklist]]
# zone = "dyndns.org"
# a = "* 86400 IN A 10.1.2.3"
# ns = "* 86400 IN NS ns.sinkhole.example.com"

# Auto-extend the whitelist when an already-whitelisted nameserver is
# seen serving a zone that isn't whitelisted yet (spec censor-learn row 2)
autowhitelist = false

# Auto-extend the blacklist when an already-blacklisted zone or
# nameserver is seen paired with one that isn't yet (censor-learn rows 3-4)
autoblacklist = false
`

// Load loads the given config file. When the file does not exist and
// its base name is "sinkdns.conf", Load reads "sinkdns.toml" instead if
// that exists, and otherwise generates a default file at cfgfile first.
// A missing file under any other name is not generated and fails to
// decode.
func Load(cfgfile, version string) (*Config, error) {
	config := new(Config)

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if path.Base(cfgfile) == "sinkdns.conf" {
			if _, err := os.Stat("sinkdns.toml"); os.IsNotExist(err) {
				if err := generateConfig(cfgfile); err != nil {
					return nil, err
				}
			} else {
				cfgfile = "sinkdns.toml"
			}
		}
	}

	log.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, config); err != nil {
		return nil, fmt.Errorf("could not load config: %s", err)
	}

	if config.Version != configver {
		log.Warn("Config file is out of version, you can generate new one and check the changes.")
	}

	config.sVersion = version

	return config, nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}

	defer func() {
		err := output.Close()
		if err != nil {
			log.Warn("Config generation failed while file closing", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		log.Info("Default config file generated", "config", abs)
	}

	return nil
}
