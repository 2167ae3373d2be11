package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"yes":   true,
		"on":    true,
		"false": false,
		"0":     false,
		"":      false,
		"nope":  false,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseBool(input), "ParseBool(%q)", input)
	}
}

func TestBoolReadsEnv(t *testing.T) {
	t.Setenv("IUDEX_TEST_FLAG", "yes")
	assert.True(t, Bool("IUDEX_TEST_FLAG"))
	t.Setenv("IUDEX_TEST_FLAG", "0")
	assert.False(t, Bool("IUDEX_TEST_FLAG"))
}
