package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/nlp"
)

// TopicManager is the skill-dispatch collaborator. The topic package
// provides the implementation; dialog only sees this surface.
type TopicManager interface {
	// Topics lists the registered topic names.
	Topics() []string

	// Topic selects the topic for the current status.
	Topic(s *Status) string

	// UpdateMasks fills s.ResponseMask for the selected topic from the
	// current entity set.
	UpdateMasks(s *Status)

	// RecordResponse resolves a scripted response text to its template
	// ID and records it in s as the ground-truth target. Used when
	// building supervised examples.
	RecordResponse(canonical string, s *Status)

	// Respond runs the model on the assembled single-turn batch and
	// fills s.Response and s.ResponseString.
	Respond(ctx context.Context, b *Batch, s *Status) error
}

// ErrWrongPhase is returned when an operation is called outside its
// legal state-machine phase.
var ErrWrongPhase = errors.New("dialog: operation not legal in current phase")

// Config assembles a State. Zero values take the defaults.
type Config struct {
	Vocab     nlp.Vocab
	Tokenizer nlp.Tokenizer
	NER       nlp.NER
	Sentiment nlp.Sentiment
	Entities  *entity.Index
	Topics    TopicManager

	// MaxSeqLen is the fixed token-window length, BOS/EOS included.
	// Default 100.
	MaxSeqLen int

	// MaxEntityTypes is the entity feature width. Default 1024.
	MaxEntityTypes int

	// MaxLoop caps the turns that still earn reward. Default 20.
	MaxLoop int

	// Discount is the per-turn reward discount. Default 0.95.
	Discount float64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxSeqLen == 0 {
		out.MaxSeqLen = 100
	}
	if out.MaxEntityTypes == 0 {
		out.MaxEntityTypes = 1024
	}
	if out.MaxLoop == 0 {
		out.MaxLoop = 20
	}
	if out.Discount == 0 {
		out.Discount = 0.95
	}
	return out
}

// State tracks one session's dialog. It is owned by a single session
// and is not safe for concurrent use; sessions never share a State.
type State struct {
	cfg     Config
	phase   Phase
	current *Status
	history []*Status
}

// NewState creates a fresh dialog state in the Empty phase.
func NewState(cfg Config) *State {
	return &State{
		cfg:     cfg.withDefaults(),
		phase:   Empty,
		current: newStatus(),
	}
}

// Phase returns the current state-machine phase.
func (st *State) Phase() Phase { return st.phase }

// Len returns the number of completed turns.
func (st *State) Len() int { return len(st.history) }

// Current returns the mutable current-turn status.
func (st *State) Current() *Status { return st.current }

// History returns the immutable turn snapshots.
func (st *State) History() []*Status { return st.history }

// AddUtterance folds an utterance into the current turn and moves the
// session to AwaitingResponse. It returns false, a no-op with nothing
// recorded, when the text is empty after trimming; the caller should
// fall back rather than treat that as an error.
//
// Unlike AddResponse and GetResponse, AddUtterance is legal in any
// phase. A second call before the turn is answered folds into the same
// pending turn: entities accumulate (first seen still wins) while the
// token window, topic and sentiment follow the latest text. Nothing
// reaches history until the turn is answered.
func (st *State) AddUtterance(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	entities, canonical := st.cfg.NER.Extract(text)
	for name, values := range entities {
		if len(values) == 0 {
			continue
		}
		// First seen value wins for the whole session.
		if _, seen := st.current.Entities[name]; !seen {
			st.current.Entities[name] = values[0]
		}
	}
	st.cfg.Entities.Map(entities) // learn value IDs as a side effect

	names := make([]string, 0, len(st.current.Entities))
	for name := range st.current.Entities {
		names = append(names, name)
	}
	feature, err := st.cfg.Entities.Feature(names, st.cfg.MaxEntityTypes)
	if err != nil {
		// Width misconfiguration: surface loudly in the feature but do
		// not kill the session.
		feature = make([]float64, st.cfg.MaxEntityTypes)
	}
	st.current.EntityFeature = feature

	tokens := st.cfg.Tokenizer.Tokenize(canonical)
	ids := st.cfg.Vocab.IDs(tokens)
	st.current.Utterance, st.current.UtteranceMask = formatSentence(ids, st.cfg.MaxSeqLen)
	st.current.UtteranceText = canonical

	st.current.Topic = st.cfg.Topics.Topic(st.current)
	st.current.Sentiment = st.cfg.Sentiment.Score(text)
	st.cfg.Topics.UpdateMasks(st.current)

	st.phase = AwaitingResponse
	return true
}

// AddResponse records a scripted response as the ground-truth target
// for the pending turn and snapshots it into history. Training-data
// construction only.
func (st *State) AddResponse(text string) error {
	if st.phase != AwaitingResponse {
		return fmt.Errorf("%w: AddResponse in %s", ErrWrongPhase, st.phase)
	}
	_, canonical := st.cfg.NER.Extract(strings.TrimSpace(text))
	st.cfg.Topics.RecordResponse(canonical, st.current)
	st.snapshot()
	st.phase = Responded
	return nil
}

// GetResponse selects a response for the pending turn by running the
// tracker on a single-turn batch, snapshots the completed turn, and
// returns the response text.
func (st *State) GetResponse(ctx context.Context) (string, error) {
	if st.phase != AwaitingResponse {
		return "", fmt.Errorf("%w: GetResponse in %s", ErrWrongPhase, st.phase)
	}
	batch := st.CurrentBatch()
	if err := st.cfg.Topics.Respond(ctx, batch, st.current); err != nil {
		return "", err
	}
	st.snapshot()
	st.phase = Responded
	return st.current.ResponseString, nil
}

// CurrentBatch assembles a single-turn batch from the current status,
// with the turn counter continuing from the session history. Inference
// and full-history training share this code path, so the features are
// identical either way.
func (st *State) CurrentBatch() *Batch {
	return Assemble(
		[][]*Status{{st.current}},
		[]int{len(st.history)},
		st.cfg.Topics.Topics(),
		st.cfg.MaxLoop,
		st.cfg.Discount,
	)
}

// HistoryBatch assembles the whole session history into one batch.
func (st *State) HistoryBatch() *Batch {
	return Assemble(
		[][]*Status{st.history},
		[]int{0},
		st.cfg.Topics.Topics(),
		st.cfg.MaxLoop,
		st.cfg.Discount,
	)
}

// Reset clears the current turn and entity map. History is retained
// for audit; a reset state is otherwise indistinguishable from new.
func (st *State) Reset() {
	st.current = newStatus()
	st.phase = Empty
}

// snapshot deep-copies the current turn into history.
func (st *State) snapshot() {
	st.history = append(st.history, st.current.Clone())
}

// formatSentence frames token IDs with BOS/EOS inside a fixed window
// and returns the window with its attention mask. IDs beyond the
// window are truncated.
func formatSentence(ids []int, maxSeqLen int) (sentence, mask []int) {
	if len(ids) > maxSeqLen-2 {
		ids = ids[:maxSeqLen-2]
	}
	seqLen := len(ids) + 2
	sentence = make([]int, maxSeqLen)
	mask = make([]int, maxSeqLen)
	sentence[0] = nlp.BosID
	copy(sentence[1:], ids)
	sentence[seqLen-1] = nlp.EosID
	for i := 0; i < seqLen; i++ {
		mask[i] = 1
	}
	return sentence, mask
}
