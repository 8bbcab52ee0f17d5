package source

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `[
  {"name": "A", "api": "http://a.example/api.php/provide/vod/"},
  {"name": "B", "api": "http://b.example/api.php", "active": false, "tip": "slow"},
  {"name": "C", "api": "ftp://c.example/"},
  {"name": " D ", "api": "https://d.example/api.php", "active": true}
]`

func newRegistry(t *testing.T, body string) *Registry {
	t.Helper()
	mem := afero.NewMemMapFs()
	if body != "" {
		require.NoError(t, afero.WriteFile(mem, "/sources.json", []byte(body), 0o600))
	}
	return NewRegistry(mem, "/sources.json")
}

func TestLoad(t *testing.T) {
	r := newRegistry(t, doc)
	all, err := r.Load()
	require.NoError(t, err)
	require.Len(t, all, 3, "invalid endpoint skipped")
	assert.True(t, all[0].Active, "absent active means true")
	assert.False(t, all[1].Active)
	assert.Equal(t, "slow", all[1].Tip)
	assert.Equal(t, "D", all[2].Name)

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, []string{active[0].Name, active[1].Name})
}

func TestLoad_Missing(t *testing.T) {
	_, err := newRegistry(t, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestUpsert(t *testing.T) {
	r := newRegistry(t, "")
	_, err := r.Upsert(Source{Name: "A", API: "http://a.example/", Active: true})
	require.NoError(t, err)
	all, err := r.Upsert(Source{Name: "A", API: "http://a2.example/", Active: false})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "http://a2.example/", all[0].API)

	loaded, err := r.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.False(t, loaded[0].Active, "explicit false survives a save")

	_, err = r.Upsert(Source{Name: "", API: "http://x/"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpsert_KeepsInvalidEntries(t *testing.T) {
	r := newRegistry(t, doc)
	all, err := r.Upsert(Source{Name: "E", API: "https://e.example/api.php", Active: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D", "E"}, lo.Map(all, func(s Source, _ int) string { return s.Name }))

	data, err := afero.ReadFile(r.fs, r.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "ftp://c.example/", "an entry that fails validation stays in the document")

	loaded, err := r.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 4)
}

func TestSave_Duplicate(t *testing.T) {
	r := newRegistry(t, "")
	err := r.Save([]Source{{Name: "A", API: "http://a/"}, {Name: "A", API: "http://b/"}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFind(t *testing.T) {
	s, ok := Find([]Source{{Name: "A"}, {Name: "B", Tip: "x"}}, "B")
	assert.True(t, ok)
	assert.Equal(t, "x", s.Tip)
	_, ok = Find(nil, "Z")
	assert.False(t, ok)
}
