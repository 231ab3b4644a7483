package encoder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Hash is a deterministic feature-hashing encoder: every token
// deterministically seeds a pseudo-random unit direction, and the
// utterance vector is the mean of its token directions. Token IDs are
// used when the utterance carries them; otherwise the lower-cased
// words of the text are hashed. The same input always yields the same
// vector, across processes, with no model files and no network.
//
// It is the default encoder for tests and offline runs.
type Hash struct {
	dim int
}

var _ Encoder = (*Hash)(nil)

// NewHash creates a hashing encoder with the given output width.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Encode(_ context.Context, u Utterance) ([]float64, error) {
	seeds := make([]uint64, 0, len(u.TokenIDs))
	for i, id := range u.TokenIDs {
		if i < len(u.Mask) && u.Mask[i] == 0 {
			continue
		}
		seeds = append(seeds, uint64(id))
	}
	if len(seeds) == 0 {
		for _, word := range strings.Fields(strings.ToLower(u.Text)) {
			f := fnv.New64a()
			f.Write([]byte(word))
			seeds = append(seeds, f.Sum64())
		}
	}
	if len(seeds) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float64, h.dim)
	n := 0
	for _, seed := range seeds {
		state := splitmix64(seed + 0x9e3779b97f4a7c15)
		for j := 0; j < h.dim; j++ {
			state = splitmix64(state)
			// Map to [-1, 1).
			out[j] += float64(int64(state>>11))/float64(1<<52) - 1
		}
		n++
	}
	inv := 1 / float64(n)
	var norm float64
	for j := range out {
		out[j] *= inv
		norm += out[j] * out[j]
	}
	if norm > 0 {
		scale := 1 / math.Sqrt(norm)
		for j := range out {
			out[j] *= scale
		}
	}
	return out, nil
}

func (h *Hash) EncodeBatch(ctx context.Context, us []Utterance) ([][]float64, error) {
	out := make([][]float64, len(us))
	for i, u := range us {
		v, err := h.Encode(ctx, u)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hash) Dimension() int { return h.dim }

// splitmix64 is the standard 64-bit mix used to expand a seed into a
// pseudo-random stream.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
