package dialog

import "sort"

// Batch is the model-ready form of one or more dialog histories:
// dialogs sorted by descending turn count, every per-turn field
// right-padded to the longest dialog, with the true lengths kept for
// packing. Row (d, t) is dialog d's turn t; padded turns hold zero
// values.
type Batch struct {
	// Lengths is the true turn count per dialog, descending.
	Lengths []int

	// BatchSizes[t] is the number of dialogs still active at turn t —
	// the packed-sequence step sizes for the recurrent layer.
	BatchSizes []int

	// Padded per-turn features, batch-major: [dialog][turn].
	Tokens     [][][]int
	Masks      [][][]int
	Texts      [][]string
	Entities   [][][]float64
	Sentiments [][]float64
	Rewards    [][]float64

	// Responses and ResponseMasks hold per-topic targets and legality
	// masks. A topic appears only if at least one state in the batch
	// carries it; states without the field contribute zero values.
	Responses     map[string][][]int
	ResponseMasks map[string][][][]float64
}

// PackedRow addresses one real (non-padded) turn in packed, time-major
// order: all dialogs' turn 0 first, then turn 1, and so on.
type PackedRow struct {
	Dialog int
	Turn   int
}

// PackedRows returns the packed traversal order. Its length is the sum
// of Lengths.
func (b *Batch) PackedRows() []PackedRow {
	var rows []PackedRow
	for t, bs := range b.BatchSizes {
		for d := 0; d < bs; d++ {
			rows = append(rows, PackedRow{Dialog: d, Turn: t})
		}
	}
	return rows
}

// Size returns the number of dialogs in the batch.
func (b *Batch) Size() int { return len(b.Lengths) }

// MaxTurns returns the padded turn count.
func (b *Batch) MaxTurns() int {
	if len(b.Lengths) == 0 {
		return 0
	}
	return b.Lengths[0]
}

// HasResponse reports whether ground-truth targets exist for a topic.
func (b *Batch) HasResponse(topic string) bool {
	_, ok := b.Responses[topic]
	return ok
}

// Assemble builds a batch from dialog histories. turnStarts gives, per
// dialog, the turn index its first status had within the full session
// (0 for complete histories, the history length for a single current
// turn). Dialogs with no turns are dropped.
//
// Reward per turn is discount^(turn+start) normalized by the total
// turn count, and suppressed entirely once a session has run past
// maxLoop turns — long-running dialogs stop earning signal, which is a
// truncation policy, not an accident.
func Assemble(histories [][]*Status, turnStarts []int, topics []string, maxLoop int, discount float64) *Batch {
	type dlg struct {
		statuses []*Status
		start    int
	}
	var dialogs []dlg
	for i, h := range histories {
		if len(h) == 0 {
			continue
		}
		dialogs = append(dialogs, dlg{statuses: h, start: turnStarts[i]})
	}
	b := &Batch{
		Responses:     make(map[string][][]int),
		ResponseMasks: make(map[string][][][]float64),
	}
	if len(dialogs) == 0 {
		return b
	}

	sort.SliceStable(dialogs, func(i, j int) bool {
		return len(dialogs[i].statuses) > len(dialogs[j].statuses)
	})

	n := len(dialogs)
	maxLen := len(dialogs[0].statuses)

	b.Lengths = make([]int, n)
	for i, d := range dialogs {
		b.Lengths[i] = len(d.statuses)
	}
	b.BatchSizes = make([]int, maxLen)
	for t := 0; t < maxLen; t++ {
		for _, l := range b.Lengths {
			if l > t {
				b.BatchSizes[t]++
			}
		}
	}

	// Feature widths come from the first real status.
	first := dialogs[0].statuses[0]
	seqLen := len(first.Utterance)
	entWidth := len(first.EntityFeature)

	b.Tokens = make([][][]int, n)
	b.Masks = make([][][]int, n)
	b.Texts = make([][]string, n)
	b.Entities = make([][][]float64, n)
	b.Sentiments = make([][]float64, n)
	b.Rewards = make([][]float64, n)

	// Mask widths per topic, discovered from the first state carrying
	// the field.
	maskWidth := make(map[string]int)
	hasResponse := make(map[string]bool)
	hasMask := make(map[string]bool)
	for _, d := range dialogs {
		for _, s := range d.statuses {
			for _, tk := range topics {
				if _, ok := s.Response[tk]; ok {
					hasResponse[tk] = true
				}
				if m, ok := s.ResponseMask[tk]; ok {
					hasMask[tk] = true
					if _, seen := maskWidth[tk]; !seen {
						maskWidth[tk] = len(m)
					}
				}
			}
		}
	}
	for _, tk := range topics {
		if hasResponse[tk] {
			b.Responses[tk] = make([][]int, n)
		}
		if hasMask[tk] {
			b.ResponseMasks[tk] = make([][][]float64, n)
		}
	}

	for i, d := range dialogs {
		turns := len(d.statuses)
		b.Tokens[i] = make([][]int, maxLen)
		b.Masks[i] = make([][]int, maxLen)
		b.Texts[i] = make([]string, maxLen)
		b.Entities[i] = make([][]float64, maxLen)
		b.Sentiments[i] = make([]float64, maxLen)
		b.Rewards[i] = make([]float64, maxLen)
		for _, tk := range topics {
			if hasResponse[tk] {
				b.Responses[tk][i] = make([]int, maxLen)
			}
			if hasMask[tk] {
				b.ResponseMasks[tk][i] = make([][]float64, maxLen)
			}
		}

		rewardBase := 1.0
		if turns+d.start >= maxLoop {
			rewardBase = 0
		}
		denom := float64(turns + d.start)

		for t := 0; t < maxLen; t++ {
			if t >= turns {
				// Right padding: zero vectors of matching shape.
				b.Tokens[i][t] = make([]int, seqLen)
				b.Masks[i][t] = make([]int, seqLen)
				b.Entities[i][t] = make([]float64, entWidth)
				for _, tk := range topics {
					if hasMask[tk] {
						b.ResponseMasks[tk][i][t] = make([]float64, maskWidth[tk])
					}
				}
				continue
			}
			s := d.statuses[t]
			b.Tokens[i][t] = append([]int(nil), s.Utterance...)
			b.Masks[i][t] = append([]int(nil), s.UtteranceMask...)
			b.Texts[i][t] = s.UtteranceText
			b.Entities[i][t] = append([]float64(nil), s.EntityFeature...)
			b.Sentiments[i][t] = s.Sentiment
			if denom > 0 {
				b.Rewards[i][t] = rewardBase * pow(discount, t+d.start) / denom
			}
			for _, tk := range topics {
				if hasResponse[tk] {
					if id, ok := s.Response[tk]; ok {
						b.Responses[tk][i][t] = id
					}
				}
				if hasMask[tk] {
					if m, ok := s.ResponseMask[tk]; ok {
						b.ResponseMasks[tk][i][t] = append([]float64(nil), m...)
					} else {
						b.ResponseMasks[tk][i][t] = make([]float64, maskWidth[tk])
					}
				}
			}
		}
	}
	return b
}

// pow is an integer-exponent power; discounts never need math.Pow's
// generality.
func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
