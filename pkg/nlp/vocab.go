package nlp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/elsabot/elsabot/pkg/kv"
)

// StoreVocab is a growing token-to-ID table persisted through a KV
// store. IDs are allocated monotonically starting at NumReserved and
// are never reassigned, so a vocabulary reloaded after a restart keeps
// every previously issued ID.
//
// It is safe for concurrent use.
type StoreVocab struct {
	mu    sync.RWMutex
	ids   map[string]int
	next  int
	dirty bool
}

var _ Vocab = (*StoreVocab)(nil)

// vocabKey is the KV key holding the serialized token table.
var vocabKey = kv.Key{"nlp", "vocab"}

// NewStoreVocab creates an empty vocabulary.
func NewStoreVocab() *StoreVocab {
	return &StoreVocab{
		ids:  make(map[string]int),
		next: NumReserved,
	}
}

// LoadVocab loads a vocabulary from the store. A missing table yields
// an empty vocabulary, not an error.
func LoadVocab(ctx context.Context, store kv.Store) (*StoreVocab, error) {
	v := NewStoreVocab()
	data, err := store.Get(ctx, vocabKey)
	if errors.Is(err, kv.ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nlp: load vocab: %w", err)
	}
	if err := msgpack.Unmarshal(data, &v.ids); err != nil {
		return nil, fmt.Errorf("nlp: decode vocab: %w", err)
	}
	for _, id := range v.ids {
		if id >= v.next {
			v.next = id + 1
		}
	}
	return v, nil
}

// Save writes the token table back to the store. Saving an unchanged
// vocabulary is a no-op.
func (v *StoreVocab) Save(ctx context.Context, store kv.Store) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.dirty {
		return nil
	}
	data, err := msgpack.Marshal(v.ids)
	if err != nil {
		return fmt.Errorf("nlp: encode vocab: %w", err)
	}
	if err := store.Set(ctx, vocabKey, data); err != nil {
		return fmt.Errorf("nlp: save vocab: %w", err)
	}
	v.dirty = false
	return nil
}

func (v *StoreVocab) ID(token string) int {
	v.mu.RLock()
	id, ok := v.ids[token]
	v.mu.RUnlock()
	if ok {
		return id
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.ids[token]; ok {
		return id
	}
	id = v.next
	v.next++
	v.ids[token] = id
	v.dirty = true
	return id
}

func (v *StoreVocab) IDs(tokens []string) []int {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		out[i] = v.ID(tok)
	}
	return out
}

func (v *StoreVocab) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.next
}
