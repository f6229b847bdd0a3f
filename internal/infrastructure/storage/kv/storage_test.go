package kv

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok := m.GetItem("missing")
	assert.False(t, ok)

	require.NoError(t, m.SetItem("k", "v1"))
	require.NoError(t, m.SetItem("k", "v2"))

	v, ok := m.GetItem("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.SetItem("k", "v")
			m.GetItem("k")
		}()
	}
	wg.Wait()
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	f := NewFile(path)

	_, ok := f.GetItem("missing")
	assert.False(t, ok)

	require.NoError(t, f.SetItem("a", "1"))
	require.NoError(t, f.SetItem("b", "2"))

	// A fresh handle sees the persisted values.
	g := NewFile(path)
	v, ok := g.GetItem("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	v, ok = g.GetItem("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestFile_CorruptReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	f := NewFile(path)
	_, ok := f.GetItem("a")
	assert.False(t, ok)

	// Writing recovers the file.
	require.NoError(t, f.SetItem("a", "1"))
	v, ok := f.GetItem("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}
