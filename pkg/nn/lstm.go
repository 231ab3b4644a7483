package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a stacked unidirectional LSTM that consumes a packed batch:
// time-major rows where step t carries the first batchSizes[t] dialogs
// of a batch sorted by descending length. This is the layout the batch
// assembler produces, and it lets the recurrence skip padded turns
// entirely instead of masking them afterwards.
type LSTM struct {
	layers []*lstmCell
	hidden int
}

// lstmCell holds the gate weights for one layer. Gate order in the
// stacked weight matrices is input, forget, cell, output.
type lstmCell struct {
	wx     *mat.Dense // 4H x D
	wh     *mat.Dense // 4H x H
	b      *mat.VecDense
	in     int
	hidden int
}

// NewLSTM creates a stacked LSTM. The first layer maps in -> hidden,
// the rest hidden -> hidden.
func NewLSTM(in, hidden, layers int, rng *rand.Rand) *LSTM {
	if layers < 1 {
		layers = 1
	}
	l := &LSTM{hidden: hidden}
	for i := 0; i < layers; i++ {
		d := in
		if i > 0 {
			d = hidden
		}
		cell := &lstmCell{
			wx:     xavier(4*hidden, d, rng),
			wh:     xavier(4*hidden, hidden, rng),
			b:      mat.NewVecDense(4*hidden, nil),
			in:     d,
			hidden: hidden,
		}
		// Forget-gate bias starts at 1 so early steps retain state.
		for j := hidden; j < 2*hidden; j++ {
			cell.b.SetVec(j, 1)
		}
		l.layers = append(l.layers, cell)
	}
	return l
}

// Forward runs the packed rows through all layers and returns one
// hidden vector per input row, aligned with the input layout.
func (l *LSTM) Forward(rows [][]float64, batchSizes []int) [][]float64 {
	for _, cell := range l.layers {
		rows = cell.forward(rows, batchSizes)
	}
	return rows
}

func (c *lstmCell) forward(rows [][]float64, batchSizes []int) [][]float64 {
	if len(batchSizes) == 0 {
		return nil
	}
	maxBatch := batchSizes[0]
	h := make([][]float64, maxBatch)
	cs := make([][]float64, maxBatch)
	for i := range h {
		h[i] = make([]float64, c.hidden)
		cs[i] = make([]float64, c.hidden)
	}

	out := make([][]float64, len(rows))
	offset := 0
	for _, bs := range batchSizes {
		for r := 0; r < bs; r++ {
			x := rows[offset+r]
			newH, newC := c.step(x, h[r], cs[r])
			h[r], cs[r] = newH, newC
			out[offset+r] = newH
		}
		offset += bs
	}
	return out
}

// step evaluates one LSTM step for one dialog.
func (c *lstmCell) step(x, hPrev, cPrev []float64) (hNext, cNext []float64) {
	var gates mat.VecDense
	gates.MulVec(c.wx, mat.NewVecDense(c.in, x))
	var rec mat.VecDense
	rec.MulVec(c.wh, mat.NewVecDense(c.hidden, hPrev))
	gates.AddVec(&gates, &rec)
	gates.AddVec(&gates, c.b)

	g := gates.RawVector().Data
	H := c.hidden
	hNext = make([]float64, H)
	cNext = make([]float64, H)
	for j := 0; j < H; j++ {
		i := sigmoid(g[j])
		f := sigmoid(g[H+j])
		cand := math.Tanh(g[2*H+j])
		o := sigmoid(g[3*H+j])
		cNext[j] = f*cPrev[j] + i*cand
		hNext[j] = o * math.Tanh(cNext[j])
	}
	return hNext, cNext
}

// LSTMState is the serializable form of the stacked LSTM.
type LSTMState struct {
	Hidden int             `msgpack:"hidden"`
	Layers []LSTMCellState `msgpack:"layers"`
}

// LSTMCellState holds one layer's weights.
type LSTMCellState struct {
	In int       `msgpack:"in"`
	Wx []float64 `msgpack:"wx"`
	Wh []float64 `msgpack:"wh"`
	B  []float64 `msgpack:"b"`
}

// State captures all layer weights.
func (l *LSTM) State() LSTMState {
	s := LSTMState{Hidden: l.hidden}
	for _, cell := range l.layers {
		s.Layers = append(s.Layers, LSTMCellState{
			In: cell.in,
			Wx: append([]float64(nil), cell.wx.RawMatrix().Data...),
			Wh: append([]float64(nil), cell.wh.RawMatrix().Data...),
			B:  append([]float64(nil), cell.b.RawVector().Data...),
		})
	}
	return s
}

// LoadState restores weights captured by State.
func (l *LSTM) LoadState(s LSTMState) error {
	if s.Hidden != l.hidden || len(s.Layers) != len(l.layers) {
		return fmt.Errorf("nn: lstm shape mismatch: have %d layers of %d, checkpoint %d of %d",
			len(l.layers), l.hidden, len(s.Layers), s.Hidden)
	}
	for i, cs := range s.Layers {
		cell := l.layers[i]
		if cs.In != cell.in {
			return fmt.Errorf("nn: lstm layer %d input mismatch: have %d, checkpoint %d", i, cell.in, cs.In)
		}
		cell.wx = mat.NewDense(4*l.hidden, cell.in, append([]float64(nil), cs.Wx...))
		cell.wh = mat.NewDense(4*l.hidden, l.hidden, append([]float64(nil), cs.Wh...))
		cell.b = mat.NewVecDense(4*l.hidden, append([]float64(nil), cs.B...))
	}
	return nil
}
