package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("      PRINT X"))
	cases := []struct {
		header string
		want   bool
	}{
		{"", true},
		{"*", true},
		{sum, true},
		{ETag(sum), true},
		{`"other", ` + ETag(sum), true},
		{`"other"`, false},
		{"W/" + ETag(sum), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Matches(c.header, sum), "If-Match %q", c.header)
	}
}
