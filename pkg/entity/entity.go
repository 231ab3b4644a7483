// Package entity maintains the bidirectional mapping between entity
// names/values and their stable integer IDs.
//
// IDs are allocated monotonically and never reused or reassigned, even
// across process restarts: the three tables (name→ID, ID→value,
// nameID→type) are persisted through a [kv.Store] and reloaded at
// startup. An entity name is typed (string or number) on first use and
// keeps that type forever; a value whose inferred type conflicts with
// the recorded one is rejected without mutating any table.
package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/elsabot/elsabot/pkg/kv"
)

// ValueType classifies an entity name's values.
type ValueType uint8

const (
	// TypeString marks a name whose values are free text.
	TypeString ValueType = iota
	// TypeNumber marks a name whose values parse as numbers.
	TypeNumber
)

// ErrFeatureWidth is returned by Feature when an entity ID does not fit
// the configured feature width. The width must be provisioned above the
// largest ID the system will ever allocate; silently wrapping IDs would
// alias unrelated entities.
var ErrFeatureWidth = errors.New("entity: ID exceeds feature width")

// tables is the persisted form of the index.
type tables struct {
	Names  map[string]int     `msgpack:"names"`
	Values map[int]string     `msgpack:"values"`
	Types  map[int]ValueType  `msgpack:"types"`
}

// Index is the entity dictionary. It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	names     map[string]int // entity name -> name ID
	valueIDs  map[string]int // value literal -> value ID
	values    map[int]string // value ID -> value literal
	types     map[int]ValueType
	nameNext  int
	valueNext int
	dirty     bool
}

// indexKey is the KV key holding the serialized tables.
var indexKey = kv.Key{"entity", "index"}

// NewIndex creates an empty entity index.
func NewIndex() *Index {
	return &Index{
		names:    make(map[string]int),
		valueIDs: make(map[string]int),
		values:   make(map[int]string),
		types:    make(map[int]ValueType),
	}
}

// Load reads the persisted tables from the store. A missing table
// initializes an empty index.
func Load(ctx context.Context, store kv.Store) (*Index, error) {
	idx := NewIndex()
	data, err := store.Get(ctx, indexKey)
	if errors.Is(err, kv.ErrNotFound) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entity: load: %w", err)
	}
	var t tables
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("entity: decode: %w", err)
	}
	idx.names = t.Names
	idx.values = t.Values
	idx.types = t.Types
	for id, v := range t.Values {
		idx.valueIDs[v] = id
		if id >= idx.valueNext {
			idx.valueNext = id + 1
		}
	}
	for _, id := range t.Names {
		if id >= idx.nameNext {
			idx.nameNext = id + 1
		}
	}
	return idx, nil
}

// Save writes the tables back to the store in one atomic set. Saving an
// unchanged index is a no-op.
func (idx *Index) Save(ctx context.Context, store kv.Store) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	data, err := msgpack.Marshal(tables{
		Names:  idx.names,
		Values: idx.values,
		Types:  idx.types,
	})
	if err != nil {
		return fmt.Errorf("entity: encode: %w", err)
	}
	if err := store.Set(ctx, indexKey, data); err != nil {
		return fmt.Errorf("entity: save: %w", err)
	}
	idx.dirty = false
	return nil
}

// NameID returns the stable ID for an entity name, allocating a new one
// on first sight. It never fails; repeated calls return the same ID.
func (idx *Index) NameID(name string) int {
	idx.mu.RLock()
	id, ok := idx.names[name]
	idx.mu.RUnlock()
	if ok {
		return id
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if id, ok := idx.names[name]; ok {
		return id
	}
	id = idx.nameNext
	idx.nameNext++
	idx.names[name] = id
	idx.dirty = true
	return id
}

// ValueID returns the ID for a value under the given name ID. The value
// type (number if it parses as a float, string otherwise) is recorded
// for the name on first use; a later value of the other type is
// rejected with ok=false and no table is touched. A value literal seen
// before returns its existing ID.
func (idx *Index) ValueID(nameID int, value string) (id int, ok bool) {
	vt := inferType(value)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if id, ok := idx.valueIDs[value]; ok {
		return id, true
	}
	if recorded, typed := idx.types[nameID]; typed && recorded != vt {
		return 0, false
	}

	id = idx.valueNext
	idx.valueNext++
	idx.valueIDs[value] = id
	idx.values[id] = value
	idx.types[nameID] = vt
	idx.dirty = true
	return id, true
}

// Value returns the literal for a value ID.
func (idx *Index) Value(id int) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.values[id]
	return v, ok
}

// Map converts an entity map (name -> values) to an ID map, dropping
// values rejected by type checks.
func (idx *Index) Map(entities map[string][]string) map[int][]int {
	out := make(map[int][]int, len(entities))
	for name, values := range entities {
		nameID := idx.NameID(name)
		ids := make([]int, 0, len(values))
		for _, v := range values {
			if id, ok := idx.ValueID(nameID, v); ok {
				ids = append(ids, id)
			}
		}
		out[nameID] = ids
	}
	return out
}

// Feature builds a multi-hot vector of the given width with a 1.0 at
// each name's ID. An ID at or beyond the width is an error: the caller
// must configure the width above the largest possible entity ID.
func (idx *Index) Feature(names []string, width int) ([]float64, error) {
	feature := make([]float64, width)
	for _, name := range names {
		id := idx.NameID(name)
		if id >= width {
			return nil, fmt.Errorf("%w: entity %q has ID %d, width %d", ErrFeatureWidth, name, id, width)
		}
		feature[id] = 1
	}
	return feature, nil
}

// Len returns the number of entity names in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.names)
}

// inferType classifies a value literal.
func inferType(value string) ValueType {
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return TypeNumber
	}
	return TypeString
}
