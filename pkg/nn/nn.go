// Package nn implements the small set of neural layers the dialog
// tracker needs: dense linear layers, dropout, a stacked LSTM over
// packed variable-length batches, and softmax utilities. Weights are
// gonum dense matrices; the package is forward-only — training loops
// and gradient computation live outside this repository, the layers
// here only evaluate and score.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Mode switches layers between training and evaluation behavior.
// Dropout is active only in Train mode.
type Mode int

const (
	// Eval disables stochastic layers. The default.
	Eval Mode = iota
	// Train enables dropout.
	Train
)

// xavier fills a matrix with Glorot-uniform values, the usual init for
// tanh/sigmoid gated layers.
func xavier(rows, cols int, rng *rand.Rand) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return mat.NewDense(rows, cols, data)
}

// Softmax returns the probability distribution for a logit vector.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// LogSoftmax returns log probabilities for a logit vector, computed in
// a numerically stable form.
func LogSoftmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(v - max)
	}
	logSum := max + math.Log(sum)
	for i, v := range logits {
		out[i] = v - logSum
	}
	return out
}

// NLLLoss averages the negative log-likelihood of the target classes
// over a batch of log-probability rows.
func NLLLoss(logProbs [][]float64, targets []int) float64 {
	if len(logProbs) == 0 {
		return 0
	}
	var sum float64
	for i, row := range logProbs {
		sum -= row[targets[i]]
	}
	return sum / float64(len(logProbs))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
