package bolt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/domain"
)

func TestDecodeList_RoundTrip(t *testing.T) {
	in := domain.RuleList{Name: "mixed", Rules: []domain.Rule{
		{Order: 0, Type: domain.RuleJID, Value: "a@x.com"},
		{Order: 300, Allow: true, Type: domain.RuleSubscription, Value: "both", Scope: domain.StanzaPresenceIn},
		{Order: 1 << 31, Type: domain.RuleFallThrough},
	}}
	out, err := decodeList("mixed", encodeList(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeList_Errors(t *testing.T) {
	valid := encodeList(domain.RuleList{Rules: []domain.Rule{{Type: domain.RuleJID, Value: "a@x.com"}}})

	cases := map[string][]byte{
		"empty":     nil,
		"version":   append([]byte{9}, valid[1:]...),
		"truncated": valid[:len(valid)-2],
		"trailing":  append(append([]byte{}, valid...), 0),
		"count":     {listCodecVersion, 0x7f},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeList("l", data)
			assert.Error(t, err)
		})
	}
}
