// Package template catalogs response templates: canned responses with
// entity preconditions and side-effect hooks.
//
// A template file is line-oriented, pipe-delimited:
//
//	required_entities | forbidden_entities | hooks | response text
//
// Lines with fewer than four fields are treated as comments and
// skipped. Entity names are upper-cased, hook names lower-cased.
// Placeholder tokens like {NAME} and bare numerals are substitution
// slots, not lexical content, so they are stripped before the response
// text is indexed for search; a template with nothing left after
// stripping cannot be found by search and is discarded.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/kv"
	"github.com/elsabot/elsabot/pkg/nlp"
	"github.com/elsabot/elsabot/pkg/search"
)

// placeholderPattern matches substitution slots and bare numerals in
// response text.
var placeholderPattern = regexp.MustCompile(`(\{[A-Z_]+\})|(\d+)`)

// Template is one catalog entry. The ID is its index position.
type Template struct {
	Text      string   `msgpack:"text"`
	Required  []int    `msgpack:"required"`  // entity name IDs that must be present
	Forbidden []int    `msgpack:"forbidden"` // entity name IDs that must be absent
	Hooks     []string `msgpack:"hooks"`     // ordered side-effect hook names
}

// MaskTable holds the need/notneed planes over the entity IDs
// referenced by at least one template. Entities never mentioned by any
// template get no column.
type MaskTable struct {
	Columns map[int]int // entity name ID -> column
	Need    [][]bool    // [template][column]
	NotNeed [][]bool
}

// Index is the response-template catalog.
type Index struct {
	templates []Template
	docs      [][]int // per-template token IDs for search indexing
	entities  *entity.Index
	tokenizer nlp.Tokenizer
	engine    search.Engine
	vocab     map[string]int // private search vocab, independent of the dialog vocab
	masks     *MaskTable
	logger    *slog.Logger
}

// catalogKey is the KV key holding the serialized catalog.
var catalogKey = kv.Key{"template", "catalog"}

// Config assembles an Index.
type Config struct {
	// Entities is the shared entity dictionary. Required.
	Entities *entity.Index

	// Tokenizer splits response text for indexing. Required.
	Tokenizer nlp.Tokenizer

	// Engine is the lexical search collaborator. Required.
	Engine search.Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewIndex creates an empty catalog.
func NewIndex(cfg Config) *Index {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		entities:  cfg.Entities,
		tokenizer: cfg.Tokenizer,
		engine:    cfg.Engine,
		vocab:     make(map[string]int),
		logger:    logger,
	}
}

// Add parses one template line into the catalog. Malformed lines
// (fewer than four pipe-delimited fields) are skipped: template files
// carry blank lines and comments, and rejecting them would make every
// stray line fatal.
func (idx *Index) Add(line string) {
	fields := strings.Split(line, "|")
	if len(fields) < 4 {
		if strings.TrimSpace(line) != "" {
			idx.logger.Debug("skipping malformed template line", "line", line)
		}
		return
	}
	// Only the first three pipes delimit fields; response text keeps
	// any pipes of its own.
	text := strings.TrimSpace(strings.Join(fields[3:], "|"))

	stripped := placeholderPattern.ReplaceAllString(text, "")
	tokens := idx.tokenizer.Tokenize(stripped)
	if len(tokens) == 0 {
		idx.logger.Debug("discarding template with no lexical tokens", "text", text)
		return
	}

	tmpl := Template{
		Text:      text,
		Required:  idx.entityIDs(fields[0], strings.ToUpper),
		Forbidden: idx.entityIDs(fields[1], strings.ToUpper),
		Hooks:     splitList(fields[2], strings.ToLower),
	}
	idx.templates = append(idx.templates, tmpl)
	idx.docs = append(idx.docs, idx.tokenIDs(tokens))
}

// entityIDs parses a comma-separated entity list into name IDs.
func (idx *Index) entityIDs(field string, norm func(string) string) []int {
	names := splitList(field, norm)
	ids := make([]int, 0, len(names))
	for _, name := range names {
		ids = append(ids, idx.entities.NameID(name))
	}
	return ids
}

func splitList(field string, norm func(string) string) []string {
	var out []string
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, norm(part))
	}
	return out
}

// tokenIDs maps tokens through the private search vocabulary,
// allocating IDs on first sight.
func (idx *Index) tokenIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := idx.vocab[tok]
		if !ok {
			id = len(idx.vocab)
			idx.vocab[tok] = id
		}
		ids[i] = id
	}
	return ids
}

// BuildIndex hands the catalog to the search engine for offline
// indexing. Call once, after all Add calls and before any Lookup.
func (idx *Index) BuildIndex() {
	idx.engine.LoadIndex(idx.docs)
}

// BuildMask computes the need/notneed planes. The column universe is
// the union of entity IDs referenced by any template, not the global
// entity space. Call after all Add calls; independent of BuildIndex.
func (idx *Index) BuildMask() {
	referenced := make(map[int]bool)
	for _, t := range idx.templates {
		for _, id := range t.Required {
			referenced[id] = true
		}
		for _, id := range t.Forbidden {
			referenced[id] = true
		}
	}
	ids := make([]int, 0, len(referenced))
	for id := range referenced {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	columns := make(map[int]int, len(ids))
	for col, id := range ids {
		columns[id] = col
	}

	mt := &MaskTable{
		Columns: columns,
		Need:    make([][]bool, len(idx.templates)),
		NotNeed: make([][]bool, len(idx.templates)),
	}
	for i, t := range idx.templates {
		mt.Need[i] = make([]bool, len(ids))
		mt.NotNeed[i] = make([]bool, len(ids))
		for _, id := range t.Required {
			mt.Need[i][columns[id]] = true
		}
		for _, id := range t.Forbidden {
			mt.NotNeed[i][columns[id]] = true
		}
	}
	idx.masks = mt
}

// Masks returns the mask table built by BuildMask, or nil before it.
func (idx *Index) Masks() *MaskTable {
	return idx.masks
}

// Legal computes the legality vector for the current entity set: 1.0
// where every required entity is present and no forbidden entity is,
// else 0.0. A template requiring and forbidding the same entity is
// never legal, which is tolerated rather than rejected.
func (mt *MaskTable) Legal(present map[int]bool) []float64 {
	legal := make([]float64, len(mt.Need))
	for i := range mt.Need {
		ok := true
		for id, col := range mt.Columns {
			if mt.Need[i][col] && !present[id] {
				ok = false
				break
			}
			if mt.NotNeed[i][col] && present[id] {
				ok = false
				break
			}
		}
		if ok {
			legal[i] = 1
		}
	}
	return legal
}

// Lookup returns the catalog ID of the best-matching template for a
// token sequence, delegating to the search engine with topN=1. The
// second return is false when the tokens map to no indexed terms or
// the search yields no candidate. Ranking beyond "best available match
// under the engine's scoring" is not promised.
func (idx *Index) Lookup(tokens []string) (int, bool) {
	ids := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if id, ok := idx.vocab[tok]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}
	matches := idx.engine.Search(ids, 1)
	if len(matches) == 0 {
		return 0, false
	}
	return matches[0].ID, true
}

// LookupText is Lookup over raw response text: placeholders and
// numerals are stripped and the remainder tokenized exactly as Add
// does, so a scripted response resolves to the catalog entry it was
// loaded from.
func (idx *Index) LookupText(text string) (int, bool) {
	stripped := placeholderPattern.ReplaceAllString(text, "")
	return idx.Lookup(idx.tokenizer.Tokenize(stripped))
}

// slotPattern matches substitution slots in response text.
var slotPattern = regexp.MustCompile(`\{[A-Z_]+\}`)

// Render substitutes entity values into a template's slots. Slots with
// no matching entity are left verbatim so the gap is visible in the
// reply instead of silently dropped.
func Render(text string, entities map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(text, func(slot string) string {
		name := strings.Trim(slot, "{}")
		if v, ok := entities[name]; ok {
			return v
		}
		return slot
	})
}

// OneHot converts a template ID to its one-hot training target.
func (idx *Index) OneHot(id int) []float64 {
	out := make([]float64, len(idx.templates))
	if id >= 0 && id < len(out) {
		out[id] = 1
	}
	return out
}

// Get returns the template with the given ID.
func (idx *Index) Get(id int) (Template, bool) {
	if id < 0 || id >= len(idx.templates) {
		return Template{}, false
	}
	return idx.templates[id], true
}

// Len returns the number of templates in the catalog.
func (idx *Index) Len() int {
	return len(idx.templates)
}

// catalog is the persisted form of the index.
type catalog struct {
	Templates []Template     `msgpack:"templates"`
	Docs      [][]int        `msgpack:"docs"`
	Vocab     map[string]int `msgpack:"vocab"`
}

// Save writes the catalog and its private vocabulary to the store.
func (idx *Index) Save(ctx context.Context, store kv.Store) error {
	data, err := msgpack.Marshal(catalog{
		Templates: idx.templates,
		Docs:      idx.docs,
		Vocab:     idx.vocab,
	})
	if err != nil {
		return fmt.Errorf("template: encode catalog: %w", err)
	}
	if err := store.Set(ctx, catalogKey, data); err != nil {
		return fmt.Errorf("template: save catalog: %w", err)
	}
	return nil
}

// Load restores a previously saved catalog into the index and rebuilds
// the search structure and masks. A missing catalog leaves the index
// empty.
func (idx *Index) Load(ctx context.Context, store kv.Store) error {
	data, err := store.Get(ctx, catalogKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("template: load catalog: %w", err)
	}
	var c catalog
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("template: decode catalog: %w", err)
	}
	idx.templates = c.Templates
	idx.docs = c.Docs
	idx.vocab = c.Vocab
	idx.BuildIndex()
	idx.BuildMask()
	return nil
}
