package godbf

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *dbt.Store {
	t.Helper()
	s, err := dbt.OpenFile(filepath.Join(t.TempDir(), "memo.dbt"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemo_Pending(t *testing.T) {
	m := NewMemo("hello")
	assert.True(t, m.Pending())
	assert.NotEmpty(t, m.Token())
	assert.NotEqual(t, m.Token(), NewMemo("hello").Token())

	_, ok := m.Block()
	assert.False(t, ok)

	text, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "hello", m.String())
}

func TestMemo_Persist(t *testing.T) {
	store := newTestStore(t)

	m := NewMemo("first")
	block, err := m.persist(store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), block)
	assert.False(t, m.Pending())

	again, err := m.persist(store)
	require.NoError(t, err)
	assert.Equal(t, block, again)

	b, ok := m.Block()
	assert.True(t, ok)
	assert.Equal(t, block, b)

	other := newTestStore(t)
	copied, err := m.persist(other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), copied)
	text, err := other.Read(copied)
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestMemo_Resolved(t *testing.T) {
	store := newTestStore(t)
	block, err := store.Append(strings.Repeat("x", 700))
	require.NoError(t, err)

	m := resolvedMemo(store, block)
	assert.Empty(t, m.Token())
	assert.False(t, m.Pending())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := m.Text()
			assert.NoError(t, err)
			assert.Len(t, text, 700)
		}()
	}
	wg.Wait()
}

func TestMemo_LoadError(t *testing.T) {
	store := newTestStore(t)

	m := resolvedMemo(store, 40)
	_, err := m.Text()
	var be *BlobError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, int64(40), be.Block)
	assert.True(t, errors.Is(err, dbt.ErrMissingTerminator))

	_, again := m.Text()
	assert.Same(t, err, again)
	assert.Empty(t, m.String())
	assert.False(t, m.Equal(resolvedMemo(store, 40)))
	assert.True(t, m.Equal(m))
}

func TestMemo_EqualHash(t *testing.T) {
	store := newTestStore(t)
	block, err := store.Append("same")
	require.NoError(t, err)

	a := NewMemo("same")
	b := resolvedMemo(store, block)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	c := NewMemo("different")
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash())

	var nilMemo *Memo
	assert.False(t, a.Equal(nilMemo))
	assert.True(t, nilMemo.Equal(nil))
	assert.Empty(t, nilMemo.String())
}
