package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a dense affine layer: y = Wx + b.
type Linear struct {
	w   *mat.Dense // out x in
	b   *mat.VecDense
	in  int
	out int
}

// NewLinear creates a linear layer with Glorot-initialized weights.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	return &Linear{
		w:   xavier(out, in, rng),
		b:   mat.NewVecDense(out, nil),
		in:  in,
		out: out,
	}
}

// Forward applies the layer to one input vector.
func (l *Linear) Forward(x []float64) []float64 {
	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(l.in, x))
	y.AddVec(&y, l.b)
	out := make([]float64, l.out)
	copy(out, y.RawVector().Data)
	return out
}

// ForwardBatch applies the layer to each row.
func (l *Linear) ForwardBatch(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = l.Forward(row)
	}
	return out
}

// LinearState is the serializable form of a Linear layer.
type LinearState struct {
	In  int       `msgpack:"in"`
	Out int       `msgpack:"out"`
	W   []float64 `msgpack:"w"`
	B   []float64 `msgpack:"b"`
}

// State captures the layer weights.
func (l *Linear) State() LinearState {
	w := make([]float64, l.in*l.out)
	copy(w, l.w.RawMatrix().Data)
	b := make([]float64, l.out)
	copy(b, l.b.RawVector().Data)
	return LinearState{In: l.in, Out: l.out, W: w, B: b}
}

// LoadState restores weights captured by State.
func (l *Linear) LoadState(s LinearState) error {
	if s.In != l.in || s.Out != l.out {
		return fmt.Errorf("nn: linear shape mismatch: have %dx%d, checkpoint %dx%d", l.out, l.in, s.Out, s.In)
	}
	l.w = mat.NewDense(l.out, l.in, append([]float64(nil), s.W...))
	l.b = mat.NewVecDense(l.out, append([]float64(nil), s.B...))
	return nil
}
