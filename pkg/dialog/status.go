// Package dialog maintains per-session conversational state and turns
// it into model-ready batches.
//
// A [State] owns one session's current turn and its immutable history.
// Each completed turn is deep-copied into the history, so later
// mutation of the current turn never rewrites the past. [Assemble]
// converts histories into the packed, length-sorted representation the
// recurrent tracker consumes.
package dialog

import (
	"fmt"
	"sort"
	"strings"
)

// Phase is the turn-accumulation state of a session.
type Phase int

const (
	// Empty means no utterance is pending.
	Empty Phase = iota
	// AwaitingResponse means an utterance was added and no response yet.
	AwaitingResponse
	// Responded means the last turn completed.
	Responded
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "EMPTY"
	case AwaitingResponse:
		return "AWAITING_RESPONSE"
	case Responded:
		return "RESPONDED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Status is the accumulated state of one turn. One instance is the
// session's current turn; completed turns are snapshotted into history.
type Status struct {
	// Entities is the cumulative entity map for the session. First
	// seen value per name wins; later mentions never overwrite.
	Entities map[string]string

	// EntityFeature is the multi-hot entity vector, recomputed from
	// the full cumulative set on every utterance.
	EntityFeature []float64

	// Utterance is the BOS/EOS-framed, padded token window of the
	// canonicalized utterance, with its attention mask.
	Utterance     []int
	UtteranceMask []int

	// UtteranceText is the canonical (entity-substituted) text.
	UtteranceText string

	// Sentiment is the utterance polarity in [-1, 1].
	Sentiment float64

	// Topic is the skill selected for this turn.
	Topic string

	// ResponseMask holds, per topic, the template legality vector
	// derived from the current entities.
	ResponseMask map[string][]float64

	// Response holds, per topic, the chosen (inference) or
	// ground-truth (training) template ID.
	Response map[string]int

	// ResponseString is the rendered response text for this turn.
	ResponseString string
}

func newStatus() *Status {
	return &Status{
		Entities:     make(map[string]string),
		ResponseMask: make(map[string][]float64),
		Response:     make(map[string]int),
	}
}

// Clone returns a deep copy. History snapshots are clones, never
// shared references.
func (s *Status) Clone() *Status {
	c := &Status{
		Entities:       make(map[string]string, len(s.Entities)),
		EntityFeature:  append([]float64(nil), s.EntityFeature...),
		Utterance:      append([]int(nil), s.Utterance...),
		UtteranceMask:  append([]int(nil), s.UtteranceMask...),
		UtteranceText:  s.UtteranceText,
		Sentiment:      s.Sentiment,
		Topic:          s.Topic,
		ResponseMask:   make(map[string][]float64, len(s.ResponseMask)),
		Response:       make(map[string]int, len(s.Response)),
		ResponseString: s.ResponseString,
	}
	for k, v := range s.Entities {
		c.Entities[k] = v
	}
	for k, v := range s.ResponseMask {
		c.ResponseMask[k] = append([]float64(nil), v...)
	}
	for k, v := range s.Response {
		c.Response[k] = v
	}
	return c
}

// String renders the status for the "debug" session command.
func (s *Status) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "topic: %s\n", s.Topic)
	fmt.Fprintf(&b, "sentiment: %.3f\n", s.Sentiment)
	fmt.Fprintf(&b, "utterance: %s\n", s.UtteranceText)
	fmt.Fprintf(&b, "response: %s\n", s.ResponseString)
	names := make([]string, 0, len(s.Entities))
	for name := range s.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "entity %s: %s\n", name, s.Entities[name])
	}
	return b.String()
}
