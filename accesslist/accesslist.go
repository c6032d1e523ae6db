// Package accesslist gates which client addresses may query the
// pipeline at all — ambient access control, carried from the teacher
// rather than anything spec.md names, kept because a sinkhole exposed
// to the open internet without one is a public recursive resolver by
// accident.
package accesslist

import (
	"net"

	"github.com/semihalev/log"
	"github.com/yl2chen/cidranger"
)

// AccessList decides whether a remote address may query the server.
type AccessList struct {
	ranger cidranger.Ranger
}

// New builds an AccessList from a list of CIDR strings. Entries that
// fail to parse are logged and skipped rather than aborting startup.
func New(cidrs []string) *AccessList {
	a := &AccessList{ranger: cidranger.NewPCTrieRanger()}

	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Error("access list: could not parse cidr", "cidr", cidr, "error", err.Error())
			continue
		}

		_ = a.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
	}

	return a
}

// Allowed reports whether addr may query the server. A malformed or
// missing host part is always denied.
func (a *AccessList) Allowed(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	allowed, err := a.ranger.Contains(ip)
	if err != nil {
		log.Error("access list: lookup failed", "ip", ip.String(), "error", err.Error())
		return false
	}

	return allowed
}
