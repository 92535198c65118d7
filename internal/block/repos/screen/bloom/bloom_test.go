package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizer_Size(t *testing.T) {
	s := NewSizer()
	tests := []struct {
		name  string
		n     uint64
		p     float64
		wantM uint64
		wantK uint8
	}{
		{"one percent of 1000", 1000, 0.01, 9586, 7},
		{"zero capacity clamps to one", 0, 0.01, 10, 7},
		{"invalid rate defaults to one percent", 1000, 2, 9586, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, k := s.Size(tt.n, tt.p)
			assert.Equal(t, tt.wantM, m)
			assert.Equal(t, tt.wantK, k)
		})
	}
}

func TestFactory_NoFalseNegatives(t *testing.T) {
	f := NewFactory().New(500, 0.01)
	for i := range 500 {
		f.Add([]byte(fmt.Sprintf("user%d@example.com", i)))
	}
	for i := range 500 {
		assert.True(t, f.MightContain([]byte(fmt.Sprintf("user%d@example.com", i))))
	}
}

func TestFactory_FalsePositiveRate(t *testing.T) {
	f := NewFactory().New(1000, 0.01)
	for i := range 1000 {
		f.Add([]byte(fmt.Sprintf("in%d@example.com", i)))
	}
	fp := 0
	for i := range 10000 {
		if f.MightContain([]byte(fmt.Sprintf("out%d@example.org", i))) {
			fp++
		}
	}
	assert.Less(t, fp, 500, "false positive rate far above target")
}
