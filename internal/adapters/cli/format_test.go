package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00 KB"},
		{512, "0.50 KB"},
		{1536, "1.50 KB"},
		{1 << 20, "1.00 MB"},
		{5<<20 + 512<<10, "5.50 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.in), "HumanSize(%d)", tt.in)
	}
}
