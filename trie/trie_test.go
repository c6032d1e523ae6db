package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_AddLookup(t *testing.T) {
	tr := New()

	keys, err := tr.Add("dyndns.org", RRTemplates{1: "* 86400 IN A 10.1.2.3"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"dyndns.org.", "*.dyndns.org."}, keys)

	key, ok := tr.Lookup("dyndns.org")
	assert.True(t, ok)
	assert.Equal(t, "dyndns.org.", key)

	key, ok = tr.Lookup("*.dyndns.org")
	assert.True(t, ok)
	assert.Equal(t, "*.dyndns.org.", key)

	_, ok = tr.Lookup("mtfnpy.dyndns.org")
	assert.False(t, ok, "lookup is exact, no wildcard fallback")
}

func Test_WildcardSubsumption(t *testing.T) {
	tr := New()
	_, err := tr.Add("example.com", nil)
	assert.NoError(t, err)

	for _, sub := range []string{"a.example.com", "b.a.example.com"} {
		candidates := Candidates(sub)
		matched := ""
		for _, c := range candidates {
			if _, ok := tr.Lookup(c); ok {
				matched = c
				break
			}
		}
		assert.Equal(t, "*.example.com.", matched)
	}
}

func Test_CaseInsensitive(t *testing.T) {
	tr := New()
	_, err := tr.Add("Example.COM", nil)
	assert.NoError(t, err)

	upper, ok1 := tr.Lookup("EXAMPLE.com")
	lower, ok2 := tr.Lookup("example.com")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, lower, upper)
}

func Test_ReversedCanonicalizationInverse(t *testing.T) {
	tr := New()
	keys, err := tr.Add("www.example.com", nil)
	assert.NoError(t, err)

	for _, k := range keys {
		got, ok := tr.Lookup(k)
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
}

func Test_Candidates(t *testing.T) {
	got := Candidates("a.b.c.d")
	want := []string{"a.b.c.d.", "*.a.b.c.d.", "*.b.c.d.", "*.c.d.", "*.d."}
	assert.Equal(t, want, got)
}

func Test_CandidatesNeverEmitsBareRoot(t *testing.T) {
	got := Candidates("d")
	for _, c := range got {
		assert.NotEqual(t, "*.", c)
	}
}

func Test_CloneRecord(t *testing.T) {
	tr := New()
	_, err := tr.Add("ns.sinkhole.example.com", RRTemplates{1: "* 86400 IN A 10.1.2.3"})
	assert.NoError(t, err)

	err = tr.CloneRecord("ns.sinkhole.example.com", "new.zone")
	assert.NoError(t, err)

	data, ok := tr.LookupData("new.zone")
	assert.True(t, ok)
	assert.Equal(t, "* 86400 IN A 10.1.2.3", data[1])

	_, ok = tr.LookupData("*.new.zone")
	assert.True(t, ok)
}

func Test_CloneRecordIdempotent(t *testing.T) {
	tr := New()
	_, _ = tr.Add("src.example.com", RRTemplates{1: "template"})

	err1 := tr.CloneRecord("src.example.com", "dst.example.com")
	snapshot, _ := tr.LookupData("dst.example.com")

	err2 := tr.CloneRecord("src.example.com", "dst.example.com")
	after, _ := tr.LookupData("dst.example.com")

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, snapshot, after)
}

func Test_CloneRecordNoPayloadIsNoOpInsert(t *testing.T) {
	tr := New()
	_, _ = tr.Add("whitelisted.example.com", nil)

	err := tr.CloneRecord("whitelisted.example.com", "also.example.com")
	assert.NoError(t, err)

	data, ok := tr.LookupData("also.example.com")
	assert.True(t, ok)
	assert.Nil(t, data)
}

func Test_RefInputRejected(t *testing.T) {
	tr := New()
	_, err := tr.Add("", nil)
	assert.ErrorIs(t, err, ErrRefInputRejected)

	_, err = tr.Add(".", nil)
	assert.ErrorIs(t, err, ErrRefInputRejected)
}

func Test_MergeUnsupported(t *testing.T) {
	tr := New()
	err := tr.Merge(New())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func Test_Remove(t *testing.T) {
	tr := New()
	_, _ = tr.Add("gone.example.com", RRTemplates{1: "x"})

	err := tr.Remove("gone.example.com")
	assert.NoError(t, err)

	_, ok := tr.Lookup("gone.example.com")
	assert.False(t, ok)
	_, ok = tr.Lookup("*.gone.example.com")
	assert.False(t, ok)
}

func Test_Reset(t *testing.T) {
	tr := New()
	_, _ = tr.Add("a.example.com", nil)
	_, _ = tr.Add("b.example.com", nil)

	tr.Reset()

	_, ok := tr.Lookup("a.example.com")
	assert.False(t, ok)
	_, ok = tr.Lookup("b.example.com")
	assert.False(t, ok)

	_, err := tr.Add("c.example.com", nil)
	assert.NoError(t, err)
	_, ok = tr.Lookup("c.example.com")
	assert.True(t, ok)
}

func Test_Keys_ListsAllEntriesIncludingWildcards(t *testing.T) {
	tr := New()
	_, err := tr.Add("example.com", RRTemplates{1: "x"})
	assert.NoError(t, err)

	keys := tr.Keys()
	assert.ElementsMatch(t, []string{"example.com.", "*.example.com."}, keys)
}
