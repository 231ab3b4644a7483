package dialog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/nlp"
)

// stubTopics is a minimal TopicManager for state-machine tests.
type stubTopics struct {
	maskWidth int
	response  string
}

func (s *stubTopics) Topics() []string            { return []string{"goal"} }
func (s *stubTopics) Topic(*dialog.Status) string { return "goal" }

func (s *stubTopics) UpdateMasks(st *dialog.Status) {
	mask := make([]float64, s.maskWidth)
	for i := range mask {
		mask[i] = 1
	}
	st.ResponseMask["goal"] = mask
}

func (s *stubTopics) RecordResponse(canonical string, st *dialog.Status) {
	st.Response["goal"] = 0
	st.ResponseString = canonical
}

func (s *stubTopics) Respond(_ context.Context, _ *dialog.Batch, st *dialog.Status) error {
	st.Response["goal"] = 0
	st.ResponseString = s.response
	return nil
}

func newTestState(t *testing.T) *dialog.State {
	t.Helper()
	ner, err := nlp.NewKeywordNER(nlp.NERRules{
		Keywords: map[string][]string{"TOPIC": {"payroll", "vacation"}},
	})
	if err != nil {
		t.Fatalf("NewKeywordNER: %v", err)
	}
	return dialog.NewState(dialog.Config{
		Vocab:          nlp.NewStoreVocab(),
		Tokenizer:      nlp.NewRegexpTokenizer(),
		NER:            ner,
		Sentiment:      nlp.NewLexiconSentiment(nil),
		Entities:       entity.NewIndex(),
		Topics:         &stubTopics{maskWidth: 4, response: "How can I help with payroll?"},
		MaxSeqLen:      16,
		MaxEntityTypes: 32,
	})
}

func TestStateMachineFlow(t *testing.T) {
	st := newTestState(t)
	if st.Phase() != dialog.Empty {
		t.Fatalf("fresh state phase = %s", st.Phase())
	}

	if !st.AddUtterance("I need help with payroll") {
		t.Fatalf("AddUtterance failed")
	}
	if st.Phase() != dialog.AwaitingResponse {
		t.Fatalf("phase after utterance = %s", st.Phase())
	}
	if got := st.Current().Entities["TOPIC"]; got != "payroll" {
		t.Fatalf("TOPIC entity = %q", got)
	}

	resp, err := st.GetResponse(context.Background())
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp == "" {
		t.Fatalf("empty response")
	}
	if st.Phase() != dialog.Responded {
		t.Fatalf("phase after response = %s", st.Phase())
	}
	if st.Len() != 1 {
		t.Fatalf("history length = %d, want 1", st.Len())
	}

	st.Reset()
	if st.Phase() != dialog.Empty {
		t.Fatalf("phase after reset = %s", st.Phase())
	}
	if len(st.Current().Entities) != 0 {
		t.Fatalf("entities survived reset: %v", st.Current().Entities)
	}
	// History is retained for audit.
	if st.Len() != 1 {
		t.Fatalf("history cleared by reset")
	}
}

func TestAddUtteranceEmptyIsNoop(t *testing.T) {
	st := newTestState(t)

	if st.AddUtterance("") {
		t.Fatalf("empty utterance accepted")
	}
	if st.AddUtterance("   \t ") {
		t.Fatalf("whitespace utterance accepted")
	}
	if st.Phase() != dialog.Empty {
		t.Fatalf("phase moved on no-op: %s", st.Phase())
	}
	if st.Len() != 0 {
		t.Fatalf("no-op appended to history")
	}
}

func TestFirstSeenEntityWins(t *testing.T) {
	st := newTestState(t)

	st.AddUtterance("help with payroll please")
	st.GetResponse(context.Background())
	st.AddUtterance("actually about vacation")
	if got := st.Current().Entities["TOPIC"]; got != "payroll" {
		t.Fatalf("later mention overwrote entity: %q", got)
	}
}

func TestRepeatedUtteranceFoldsIntoPendingTurn(t *testing.T) {
	st := newTestState(t)

	st.AddUtterance("help with payroll")
	if !st.AddUtterance("actually vacation") {
		t.Fatalf("second AddUtterance failed")
	}
	if st.Phase() != dialog.AwaitingResponse {
		t.Fatalf("phase = %s", st.Phase())
	}
	if st.Len() != 0 {
		t.Fatalf("history grew without a response: %d turns", st.Len())
	}
	// The entity from the first utterance survives; the token window
	// follows the latest text.
	if got := st.Current().Entities["TOPIC"]; got != "payroll" {
		t.Fatalf("TOPIC entity = %q, want first-seen payroll", got)
	}
	if got := st.Current().UtteranceText; got != "actually {TOPIC}" {
		t.Fatalf("UtteranceText = %q", got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	st := newTestState(t)

	st.AddUtterance("help with payroll")
	if err := st.AddResponse("Sure, what about payroll?"); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	snap := st.History()[0]
	// Mutating the current turn must not touch the snapshot.
	st.Current().Entities["TOPIC"] = "changed"
	st.Current().Sentiment = 0.99
	if snap.Entities["TOPIC"] != "payroll" {
		t.Fatalf("snapshot shares entity map with current")
	}
}

func TestWrongPhaseErrors(t *testing.T) {
	st := newTestState(t)

	if err := st.AddResponse("hi"); !errors.Is(err, dialog.ErrWrongPhase) {
		t.Fatalf("AddResponse in Empty: %v", err)
	}
	if _, err := st.GetResponse(context.Background()); !errors.Is(err, dialog.ErrWrongPhase) {
		t.Fatalf("GetResponse in Empty: %v", err)
	}
}

func TestFormatSentenceWindow(t *testing.T) {
	st := newTestState(t)
	st.AddUtterance("payroll help needed right now thanks")

	cur := st.Current()
	if len(cur.Utterance) != 16 || len(cur.UtteranceMask) != 16 {
		t.Fatalf("window lengths %d/%d, want 16", len(cur.Utterance), len(cur.UtteranceMask))
	}
	if cur.Utterance[0] != nlp.BosID {
		t.Fatalf("window does not start with BOS: %v", cur.Utterance)
	}
	// Find EOS right after the last unmasked token.
	last := 0
	for i, m := range cur.UtteranceMask {
		if m == 1 {
			last = i
		}
	}
	if cur.Utterance[last] != nlp.EosID {
		t.Fatalf("EOS not at end of masked span: %v", cur.Utterance)
	}
	for i := last + 1; i < 16; i++ {
		if cur.Utterance[i] != nlp.PadID || cur.UtteranceMask[i] != 0 {
			t.Fatalf("padding not zeroed at %d", i)
		}
	}
}
