// Package util provides DNS protocol utilities; the upstream package
// uses Exchange and ClassifyResponse.
package util

import "github.com/miekg/dns"

// ResponseType represents the classification of a DNS response, used by
// upstream.Client to decide whether a given server's reply should be
// accepted as final or treated as a failure worth trying the next
// configured server.
type ResponseType int

const (
	// TypeSuccess indicates a positive response with answers
	TypeSuccess ResponseType = iota
	// TypeNXDomain indicates the queried domain does not exist (NXDOMAIN)
	TypeNXDomain
	// TypeNoRecords indicates the domain exists but has no records of the requested type (NODATA)
	TypeNoRecords
	// TypeReferral indicates a delegation to another nameserver
	TypeReferral
	// TypeServerFailure indicates a server error occurred
	TypeServerFailure
)

// ClassifyResponse analyzes a DNS message and determines its type.
func ClassifyResponse(msg *dns.Msg) ResponseType {
	switch msg.Rcode {
	case dns.RcodeSuccess:
		if len(msg.Answer) > 0 {
			return TypeSuccess
		}

		// No answers - check if it's a delegation or NODATA
		if isDelegation(msg) {
			return TypeReferral
		}

		if hasSOA(msg) {
			return TypeNoRecords
		}

		return TypeSuccess

	case dns.RcodeNameError:
		return TypeNXDomain

	default:
		return TypeServerFailure
	}
}

// isDelegation checks if the response is a referral to another nameserver
func isDelegation(msg *dns.Msg) bool {
	if len(msg.Question) == 0 || len(msg.Ns) == 0 {
		return false
	}

	// Check for NS records in authority section
	for _, rr := range msg.Ns {
		if ns, ok := rr.(*dns.NS); ok {
			// It's a delegation if the NS record is for a subdomain
			if dns.IsSubDomain(ns.Header().Name, msg.Question[0].Name) {
				return true
			}
		}
	}

	return false
}

// hasSOA checks if the response contains an SOA record in the authority section
func hasSOA(msg *dns.Msg) bool {
	for _, rr := range msg.Ns {
		if _, ok := rr.(*dns.SOA); ok {
			return true
		}
	}
	return false
}
