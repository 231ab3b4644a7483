package template_test

import (
	"context"
	"testing"

	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/kv"
	"github.com/elsabot/elsabot/pkg/nlp"
	"github.com/elsabot/elsabot/pkg/search"
	"github.com/elsabot/elsabot/pkg/template"
)

func newTestIndex(t *testing.T) (*template.Index, *entity.Index) {
	t.Helper()
	ents := entity.NewIndex()
	idx := template.NewIndex(template.Config{
		Entities:  ents,
		Tokenizer: nlp.NewRegexpTokenizer(),
		Engine:    search.NewTFIDF(),
	})
	return idx, ents
}

func TestAddParsesFields(t *testing.T) {
	idx, ents := newTestIndex(t)

	idx.Add("A,B | C | Greet | Hello {NAME}")
	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1", idx.Len())
	}
	tmpl, ok := idx.Get(0)
	if !ok {
		t.Fatalf("Get(0) missing")
	}
	if tmpl.Text != "Hello {NAME}" {
		t.Fatalf("Text = %q", tmpl.Text)
	}
	aID, bID, cID := ents.NameID("A"), ents.NameID("B"), ents.NameID("C")
	if len(tmpl.Required) != 2 || tmpl.Required[0] != aID || tmpl.Required[1] != bID {
		t.Fatalf("Required = %v, want [%d %d]", tmpl.Required, aID, bID)
	}
	if len(tmpl.Forbidden) != 1 || tmpl.Forbidden[0] != cID {
		t.Fatalf("Forbidden = %v, want [%d]", tmpl.Forbidden, cID)
	}
	if len(tmpl.Hooks) != 1 || tmpl.Hooks[0] != "greet" {
		t.Fatalf("Hooks = %v, want [greet]", tmpl.Hooks)
	}
}

func TestAddKeepsPipesInResponseText(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Add("NAME | | | Press yes | no to continue")
	tmpl, ok := idx.Get(0)
	if !ok {
		t.Fatalf("Get(0) missing")
	}
	if tmpl.Text != "Press yes | no to continue" {
		t.Fatalf("Text = %q", tmpl.Text)
	}
}

func TestAddSkipsMalformedLines(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Add("")
	idx.Add("# just a comment")
	idx.Add("only | three | fields")
	if idx.Len() != 0 {
		t.Fatalf("malformed lines were added: Len = %d", idx.Len())
	}
}

func TestAddDiscardsEmptyAfterStripping(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Add("A | | | {NAME}")
	idx.Add("A | | | 123 456")
	if idx.Len() != 0 {
		t.Fatalf("placeholder-only templates were kept: Len = %d", idx.Len())
	}
}

func TestLookup(t *testing.T) {
	idx, _ := newTestIndex(t)

	idx.Add(" | | | Hello there, how can I help you")
	idx.Add(" | | | Your payroll report is ready")
	idx.Add(" | | | Goodbye and have a nice day")
	idx.BuildIndex()

	id, ok := idx.Lookup([]string{"payroll", "report"})
	if !ok {
		t.Fatalf("Lookup found nothing")
	}
	if id != 1 {
		t.Fatalf("Lookup = %d, want 1", id)
	}

	// Tokens the index has never seen yield no match, not a crash.
	if _, ok := idx.Lookup([]string{"zebra", "quantum"}); ok {
		t.Fatalf("Lookup matched unknown tokens")
	}
	if _, ok := idx.Lookup(nil); ok {
		t.Fatalf("Lookup matched empty tokens")
	}
}

func TestBuildMask(t *testing.T) {
	idx, ents := newTestIndex(t)

	idx.Add("A | B | | Sure, updating that now")
	idx.Add("B | | | What would you like to change")
	idx.BuildIndex()
	idx.BuildMask()

	mt := idx.Masks()
	if mt == nil {
		t.Fatalf("Masks is nil after BuildMask")
	}
	aID, bID := ents.NameID("A"), ents.NameID("B")

	// Column universe covers only referenced entities.
	if len(mt.Columns) != 2 {
		t.Fatalf("Columns = %v, want 2 columns", mt.Columns)
	}
	if !mt.Need[0][mt.Columns[aID]] {
		t.Fatalf("need bit for A not set on template 0")
	}
	if !mt.NotNeed[0][mt.Columns[bID]] {
		t.Fatalf("notneed bit for B not set on template 0")
	}

	// With entities {A, B} present: template 0 forbids B, template 1
	// requires only B.
	legal := mt.Legal(map[int]bool{aID: true, bID: true})
	if legal[0] != 0 {
		t.Fatalf("template forbidding a present entity is legal")
	}
	if legal[1] != 1 {
		t.Fatalf("template with satisfied requirements is illegal")
	}
}

func TestContradictoryTemplateNeverLegal(t *testing.T) {
	idx, ents := newTestIndex(t)

	// Requires and forbids the same entity. Tolerated, never selectable.
	idx.Add("A | A | | This template contradicts itself")
	idx.BuildIndex()
	idx.BuildMask()

	aID := ents.NameID("A")
	if legal := idx.Masks().Legal(map[int]bool{aID: true}); legal[0] != 0 {
		t.Fatalf("contradictory template legal with entity present")
	}
	if legal := idx.Masks().Legal(map[int]bool{}); legal[0] != 0 {
		t.Fatalf("contradictory template legal with entity absent")
	}
}

func TestOneHot(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Add(" | | | First response here")
	idx.Add(" | | | Second response here")

	oh := idx.OneHot(1)
	if len(oh) != 2 || oh[0] != 0 || oh[1] != 1 {
		t.Fatalf("OneHot(1) = %v", oh)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	idx, ents := newTestIndex(t)
	idx.Add("A | | greet | Hello there friend")
	idx.Add(" | | | Your payroll report is ready")
	idx.BuildIndex()
	idx.BuildMask()
	if err := idx.Save(ctx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	idx2 := template.NewIndex(template.Config{
		Entities:  ents,
		Tokenizer: nlp.NewRegexpTokenizer(),
		Engine:    search.NewTFIDF(),
	})
	if err := idx2.Load(ctx, store); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx2.Len() != 2 {
		t.Fatalf("reloaded Len = %d, want 2", idx2.Len())
	}
	id, ok := idx2.Lookup([]string{"payroll", "report"})
	if !ok || id != 1 {
		t.Fatalf("reloaded Lookup = (%d, %v), want (1, true)", id, ok)
	}
	if idx2.Masks() == nil {
		t.Fatalf("masks not rebuilt on load")
	}
}
