// Package kv provides the durable store behind the dialog manager's
// growing ID tables (entity names, entity values, vocabulary, template
// catalogs). Keys are hierarchical string paths such as
// Key{"entity", "name", "TOPIC"}, encoded with ':' between segments.
//
// Two implementations are provided: a BadgerDB-backed store for
// production and an in-memory store for tests. Table saves go through
// BatchSet, which both backends apply atomically, so a crash never
// leaves a half-written table.
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments in the encoded form. Segments must not
// contain it.
const Separator = ':'

// Key is a hierarchical path represented as a slice of segments.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

// Child returns a new key with extra segments appended.
func (k Key) Child(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	out = append(out, segments...)
	return out
}

// Entry is a key-value pair, used by List results and BatchSet input.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List returns all entries whose key lies strictly under the given
	// prefix, in lexicographic order of the encoded key. An empty
	// prefix lists the whole store.
	List(ctx context.Context, prefix Key) ([]Entry, error)

	// BatchSet stores multiple key-value pairs atomically: either all
	// entries become visible or none do.
	BatchSet(ctx context.Context, entries []Entry) error

	// Close releases any resources held by the store.
	Close() error
}

// encodeKey converts a Key to its stored byte form.
func encodeKey(k Key) []byte {
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, Separator)
		}
		buf = append(buf, seg...)
	}
	return buf
}

// decodeKey converts a stored byte form back to a Key.
func decodeKey(b []byte) Key {
	parts := strings.Split(string(b), string(Separator))
	return Key(parts)
}

// scanPrefix returns the byte prefix that matches keys under k. A
// trailing separator is appended so that prefix "a:b" does not match
// the unrelated key "a:bc".
func scanPrefix(k Key) []byte {
	if len(k) == 0 {
		return nil
	}
	return append(encodeKey(k), Separator)
}
