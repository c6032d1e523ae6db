package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/semihalev/log"
	"github.com/sinkdns/sinkdns/trie"
)

// Watcher watches the config file for changes and repopulates the
// whitelist/blacklist tries in place on every write, so a running
// sinkhole can pick up new policy entries without a restart.
type Watcher struct {
	path      string
	whitelist *trie.DomainTrie
	blacklist *trie.DomainTrie

	fsw *fsnotify.Watcher
}

// NewWatcher builds a Watcher over the given tries. The tries are not
// owned by the watcher — callers keep using the same *DomainTrie
// pointers the rest of the pipeline was built with; reload mutates
// their contents rather than replacing them.
func NewWatcher(path string, whitelist, blacklist *trie.DomainTrie) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: could not create file watcher: %w", err)
	}

	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: could not watch %s: %w", path, err)
	}

	return &Watcher{path: path, whitelist: whitelist, blacklist: blacklist, fsw: fsw}, nil
}

// Run blocks, reloading the tries on every debounced write/create
// event, until stop is closed. Editors commonly write a file more than
// once per save, so writes are coalesced with a short debounce window
// before triggering a reload.
func (w *Watcher) Run(stop <-chan struct{}) {
	const debounceDelay = 150 * time.Millisecond

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-stop:
			w.fsw.Close()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(debounceDelay)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error("config watcher error", "error", err.Error())

		case <-timer.C:
			if err := w.reload(); err != nil {
				log.Error("config reload failed", "path", w.path, "error", err.Error())
				continue
			}
			log.Info("config reloaded", "path", w.path)
		}
	}
}

// reload re-decodes the config file and repopulates both tries from
// scratch. A decode error leaves both tries untouched.
func (w *Watcher) reload() error {
	cfg := new(Config)
	if _, err := toml.DecodeFile(w.path, cfg); err != nil {
		return fmt.Errorf("could not decode %s: %w", w.path, err)
	}

	w.whitelist.Reset()
	for _, zone := range cfg.WhitelistZones {
		if _, err := w.whitelist.Add(zone, nil); err != nil {
			log.Warn("skipping malformed whitelist zone on reload", "zone", zone, "error", err.Error())
		}
	}

	w.blacklist.Reset()
	for _, entry := range cfg.BlacklistEntries {
		templates := trie.RRTemplates(entry.Templates())
		if _, err := w.blacklist.Add(entry.Zone, templates); err != nil {
			log.Warn("skipping malformed blacklist zone on reload", "zone", entry.Zone, "error", err.Error())
		}
	}

	return nil
}
