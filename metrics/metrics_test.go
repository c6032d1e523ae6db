package metrics

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ObserveQuery_IncrementsLabeledCounter(t *testing.T) {
	m := New(nil)

	m.ObserveQuery(dns.TypeA, dns.RcodeSuccess, "blacklist")

	got := testutil.ToFloat64(m.queries.WithLabelValues("A", "0", "blacklist"))
	assert.Equal(t, float64(1), got)
}

func Test_ObserveScrub_IncrementsScrubAction(t *testing.T) {
	m := New(nil)

	m.ObserveScrub()
	m.ObserveScrub()

	got := testutil.ToFloat64(m.Learn.WithLabelValues("scrub"))
	assert.Equal(t, float64(2), got)
}

func Test_ObserveClone_IncrementsPerKind(t *testing.T) {
	m := New(nil)

	m.ObserveClone("whitelist")
	m.ObserveClone("blacklist")
	m.ObserveClone("blacklist")

	require.Equal(t, float64(1), testutil.ToFloat64(m.Learn.WithLabelValues("clone_whitelist")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Learn.WithLabelValues("clone_blacklist")))
}
