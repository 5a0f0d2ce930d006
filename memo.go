package godbf

import (
	"sync"

	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/ksuid"
)

// Memo is a text value kept in the memo file. A memo is either pending,
// holding text that has not been assigned a block yet, or resolved, pointing
// at a block whose text is loaded on first access and cached.
//
// A Memo is safe for concurrent use.
type Memo struct {
	mu sync.Mutex

	token  ksuid.KSUID
	store  *dbt.Store
	block  int64
	text   string
	loaded bool
	err    error
}

// NewMemo returns a pending memo holding text.
func NewMemo(text string) *Memo {
	return &Memo{token: ksuid.New(), text: text, loaded: true}
}

func resolvedMemo(store *dbt.Store, block int64) *Memo {
	return &Memo{store: store, block: block}
}

// Token returns the identity given to a memo created with NewMemo, or an
// empty string for a memo read from a table.
func (m *Memo) Token() string {
	if m.token.IsNil() {
		return ""
	}
	return m.token.String()
}

// Pending reports whether the memo is waiting for a block assignment.
func (m *Memo) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store == nil
}

// Block returns the assigned block index; ok is false for a pending memo.
func (m *Memo) Block() (block int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block, m.store != nil
}

// Text returns the memo text, loading it from the memo store on first use.
// A failed load is remembered and returned by later calls.
func (m *Memo) Text() (string, error) {
	if m == nil {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Memo) load() (string, error) {
	if m.loaded {
		return m.text, nil
	}
	if m.err != nil {
		return "", m.err
	}
	text, err := m.store.Read(m.block)
	if err != nil {
		m.err = &BlobError{Block: m.block, Err: err}
		return "", m.err
	}
	m.text, m.loaded = text, true
	return m.text, nil
}

// persist assigns the memo a block in store and returns it. A memo already
// resolved against store keeps its block; one resolved against another
// store is copied.
func (m *Memo) persist(store *dbt.Store) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == store {
		return m.block, nil
	}
	text, err := m.load()
	if err != nil {
		return 0, err
	}
	block, err := store.Append(text)
	if err != nil {
		return 0, &BlobError{Err: err}
	}
	m.store, m.block = store, block
	return block, nil
}

// Equal reports whether both memos hold the same text. Unloadable memos are
// only equal to themselves.
func (m *Memo) Equal(o *Memo) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	a, err := m.Text()
	if err != nil {
		return false
	}
	b, err := o.Text()
	if err != nil {
		return false
	}
	return a == b
}

// Hash returns a hash of the memo text, consistent with Equal.
func (m *Memo) Hash() uint64 {
	text, _ := m.Text()
	return xxhash.Sum64String(text)
}

// String returns the memo text, or an empty string when it cannot be
// loaded.
func (m *Memo) String() string {
	text, _ := m.Text()
	return text
}
