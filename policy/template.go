package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// ErrMalformedTemplate is the error kind substituteOwner returns when a
// blacklist payload's record template does not parse or does not carry
// the "*" owner placeholder the synthesis algorithm requires.
var ErrMalformedTemplate = errors.New("policy: malformed record template")

// substituteOwner fills template's owner-name placeholder ("*") with owner
// and parses the result into an RR. Templates are stored in presentation
// format, e.g. "* 86400 IN A 10.1.2.3".
func substituteOwner(template, owner string) (dns.RR, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty template", ErrMalformedTemplate)
	}

	if fields[0] != "*" {
		return nil, fmt.Errorf("%w: owner field is %q, want \"*\"", ErrMalformedTemplate, fields[0])
	}

	fields[0] = dns.Fqdn(owner)

	rr, err := dns.NewRR(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	return rr, nil
}
