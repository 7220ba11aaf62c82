package outputcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(1<<20, 60)
	require.NoError(t, c.Put(7, []byte("out"), []byte("err")))
	stdout, stderr, ok := c.Get(7)
	require.True(t, ok)
	require.Equal(t, "out", string(stdout))
	require.Equal(t, "err", string(stderr))
}

func TestGetMissingJobNotOK(t *testing.T) {
	c := New(1<<20, 60)
	_, _, ok := c.Get(99)
	require.False(t, ok)
}

func TestEvictRemovesBothStreams(t *testing.T) {
	c := New(1<<20, 60)
	require.NoError(t, c.Put(3, []byte("a"), []byte("b")))
	c.Evict(3)
	_, _, ok := c.Get(3)
	require.False(t, ok)
}

func TestDistinctJobsDoNotCollide(t *testing.T) {
	c := New(1<<20, 60)
	require.NoError(t, c.Put(1, []byte("one-out"), []byte("one-err")))
	require.NoError(t, c.Put(2, []byte("two-out"), []byte("two-err")))

	stdout, _, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "one-out", string(stdout))

	stdout, _, ok = c.Get(2)
	require.True(t, ok)
	require.Equal(t, "two-out", string(stdout))
}
