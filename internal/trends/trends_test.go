package trends

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackAndTop(t *testing.T) {
	c := New(afero.NewMemMapFs(), "/data/trends.json")
	for _, q := range []string{"繁花", " 繁花 ", "alpha", "beta", "beta", "beta", "  "} {
		require.NoError(t, c.Track(q))
	}
	top := c.Top(0)
	require.Len(t, top, 3)
	assert.Equal(t, Entry{Query: "beta", Count: 3}, top[0])
	assert.Equal(t, Entry{Query: "繁花", Count: 2}, top[1])
	assert.Equal(t, Entry{Query: "alpha", Count: 1}, top[2])
	assert.Len(t, c.Top(1), 1)
}

func TestTrackCapsEntries(t *testing.T) {
	c := New(afero.NewMemMapFs(), "/trends.json")
	require.NoError(t, c.Track("hot"))
	require.NoError(t, c.Track("hot"))
	for i := 0; i < MaxEntries+20; i++ {
		require.NoError(t, c.Track(fmt.Sprintf("q%03d", i)))
	}
	counts := c.Load()
	assert.Len(t, counts, MaxEntries)
	assert.Equal(t, 2, counts["hot"], "highest count survives eviction")
}

func TestCappedTiesByQuery(t *testing.T) {
	got := Counts{"b": 1, "a": 1, "c": 1}.Capped(2)
	assert.Equal(t, Counts{"a": 1, "b": 1}, got)
}

func TestLoadInvalidOrDisabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o600))
	assert.Empty(t, New(fs, "/bad.json").Load())
	disabled := New(fs, "")
	assert.NoError(t, disabled.Track("x"))
	assert.Empty(t, disabled.Top(5))
}
