package nn

import "math/rand"

// Dropout zeroes a fraction of inputs in Train mode, scaling the rest
// by 1/(1-p) so the expected activation is unchanged. In Eval mode it
// is the identity.
type Dropout struct {
	p   float64
	rng *rand.Rand
}

// NewDropout creates a dropout layer with drop probability p.
func NewDropout(p float64, rng *rand.Rand) *Dropout {
	return &Dropout{p: p, rng: rng}
}

// Forward applies dropout to one vector.
func (d *Dropout) Forward(x []float64, mode Mode) []float64 {
	if mode == Eval || d.p <= 0 {
		return x
	}
	scale := 1 / (1 - d.p)
	out := make([]float64, len(x))
	for i, v := range x {
		if d.rng.Float64() >= d.p {
			out[i] = v * scale
		}
	}
	return out
}

// ForwardBatch applies dropout to each row.
func (d *Dropout) ForwardBatch(rows [][]float64, mode Mode) [][]float64 {
	if mode == Eval || d.p <= 0 {
		return rows
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = d.Forward(row, mode)
	}
	return out
}
