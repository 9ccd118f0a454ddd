package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	got := Expand([]string{"dirs_g", "ioctl", "getcwd", ""})
	assert.Equal(t, []string{"getcwd", "getdents64", "ioctl"}, got)
}

func TestCompressRoundTrip(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			expanded := Expand([]string{name})
			compressed := Compress(expanded)
			assert.Equal(t, expanded, Expand(compressed))
		})
	}
}

func TestCompressCombined(t *testing.T) {
	expanded := Expand([]string{"sockets", "time", "ioctl", "getrandom"})
	compressed := Compress(expanded)
	require.Equal(t, expanded, Expand(compressed))
	assert.Contains(t, compressed, "sockets")
	assert.Contains(t, compressed, "time")
	assert.Contains(t, compressed, "ioctl")
	assert.Contains(t, compressed, "getrandom")
	assert.Len(t, compressed, 4)
}

func TestCompressPartialGroup(t *testing.T) {
	// a partial group must stay literal or the allow list would grow
	compressed := Compress([]string{"chdir"})
	assert.Equal(t, []string{"chdir"}, compressed)
}

func TestLookup(t *testing.T) {
	g, ok := Lookup("pkey")
	require.True(t, ok)
	g[0] = "mutated"
	again, _ := Lookup("pkey")
	assert.Equal(t, "pkey_alloc", again[0])

	_, ok = Lookup("not_a_group")
	assert.False(t, ok)
}
