package recipient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidAddress(t *testing.T) {
	r, ok := Parse("bak+arq.client123.keyABC@domain.com", nil)
	require.True(t, ok)
	assert.Equal(t, "bak+arq.client123.keyABC@domain.com", r.Original)
	assert.Equal(t, "bak", r.Prefix)
	assert.Equal(t, "arq", r.BackupType)
	assert.Equal(t, "client123", r.ClientID)
	assert.Equal(t, "keyABC", r.ClientKey)
	assert.Equal(t, "domain.com", r.Domain)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"no at":              "bad-address",
		"empty":              "",
		"two ats":            "bak+arq.c1.k1@a@domain.com",
		"no plus":            "bakarq.c1.k1@domain.com",
		"two dot parts":      "bak+arq.c1@domain.com",
		"four dot parts":     "bak+arq.c1.k1.x@domain.com",
		"bad backup type":    "bak+ARQ!.c1.k1@domain.com",
		"empty client id":    "bak+arq..k1@domain.com",
		"empty client key":   "bak+arq.c1.@domain.com",
		"second plus in key": "bak+arq.c1.k+1@domain.com",
	}
	for name, addr := range cases {
		t.Run(name, func(t *testing.T) {
			r, ok := Parse(addr, nil)
			assert.False(t, ok)
			assert.Nil(t, r)
		})
	}
}

func TestParse_Filter(t *testing.T) {
	addr := "bak+arq.c1.k1@domain.com"

	_, ok := Parse(addr, &Filter{Prefix: "bak", Domain: "domain.com"})
	assert.True(t, ok)

	for _, f := range []Filter{
		{Prefix: "other"},
		{Domain: "other.com"},
		{BackupType: "json"},
		{ClientID: "c2"},
		{ClientKey: "k2"},
	} {
		_, ok := Parse(addr, &f)
		assert.False(t, ok, "filter %+v should reject", f)
	}
}

func TestParse_TotalOnArbitraryInput(t *testing.T) {
	inputs := []string{"@", "+@", "+..@", "a+b.c.d@", "+a.b.c@d", "\x00+a.b.c@d", "a+b.c.d@e@f"}
	for _, in := range inputs {
		r, ok := Parse(in, nil)
		if !ok {
			assert.Nil(t, r)
			continue
		}
		assert.Equal(t, in, Format(r.Prefix, r.BackupType, r.ClientID, r.ClientKey, r.Domain))
	}
}

func TestParseAll_DropsNonMatching(t *testing.T) {
	got := ParseAll([]string{
		"someone@domain.com",
		"bak+arq.c1.k1@domain.com",
		"bak+json.c2.k2@other.com",
	}, &Filter{Domain: "domain.com"})

	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ClientID)
}
