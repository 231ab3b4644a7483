// Package tracker implements the per-topic dialog tracker: a recurrent
// scorer that turns an assembled dialog batch into log probabilities
// over a topic's response templates.
//
// The forward pass concatenates the pooled utterance vector, an
// embedding of the session's entity feature, and the sentiment score,
// projects the result, runs a stacked LSTM over the packed turns, and
// scores the hidden state against the template catalog. In Eval mode
// the scores are masked by template legality before the log is taken;
// in Train mode the raw log-softmax is returned together with the
// negative log-likelihood loss when ground-truth targets are present.
package tracker

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/encoder"
	"github.com/elsabot/elsabot/pkg/nn"
)

// maskFloor keeps masked-out log probabilities finite.
const maskFloor = 1e-15

// Config assembles a Tracker. Zero values take the defaults.
type Config struct {
	// Topic is the topic whose responses and masks this tracker reads
	// from a batch.
	Topic string

	// Encoder pools utterances into fixed-width vectors.
	Encoder encoder.Encoder

	// NumResponses is the size of the topic's template catalog.
	NumResponses int

	// MaxEntityTypes is the entity feature width. Default 1024.
	MaxEntityTypes int

	// EntityLayers is the depth of the entity embedding stack.
	// Default 2.
	EntityLayers int

	// EntityEmbDim is the entity embedding width. Default 50.
	EntityEmbDim int

	// LSTMLayers is the recurrent depth. Default 1.
	LSTMLayers int

	// HiddenDim is the recurrent hidden width. Default 300.
	HiddenDim int

	// Dropout is the drop probability applied to the entity embedding
	// in Train mode. Default 0.2.
	Dropout float64

	// Seed fixes weight initialization for reproducible tests. Zero
	// means seed 1.
	Seed int64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxEntityTypes == 0 {
		out.MaxEntityTypes = 1024
	}
	if out.EntityLayers == 0 {
		out.EntityLayers = 2
	}
	if out.EntityEmbDim == 0 {
		out.EntityEmbDim = 50
	}
	if out.LSTMLayers == 0 {
		out.LSTMLayers = 1
	}
	if out.HiddenDim == 0 {
		out.HiddenDim = 300
	}
	if out.Dropout == 0 {
		out.Dropout = 0.2
	}
	if out.Seed == 0 {
		out.Seed = 1
	}
	return out
}

// Tracker scores dialog turns against one topic's template catalog.
// It is not safe for concurrent use.
type Tracker struct {
	cfg  Config
	mode nn.Mode

	fcEntity []*nn.Linear
	drop     *nn.Dropout
	fcDialog *nn.Linear
	lstm     *nn.LSTM
	fcOut    *nn.Linear
}

// New creates a tracker with freshly initialized weights.
func New(cfg Config) (*Tracker, error) {
	cfg = cfg.withDefaults()
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("tracker: %s: encoder is required", cfg.Topic)
	}
	if cfg.NumResponses <= 0 {
		return nil, fmt.Errorf("tracker: %s: catalog is empty", cfg.Topic)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	t := &Tracker{cfg: cfg, mode: nn.Eval}
	for i := 0; i < cfg.EntityLayers; i++ {
		out := cfg.MaxEntityTypes
		if i == cfg.EntityLayers-1 {
			out = cfg.EntityEmbDim
		}
		t.fcEntity = append(t.fcEntity, nn.NewLinear(cfg.MaxEntityTypes, out, rng))
	}
	t.drop = nn.NewDropout(cfg.Dropout, rng)

	inDim := cfg.Encoder.Dimension() + cfg.EntityEmbDim + 1
	t.fcDialog = nn.NewLinear(inDim, cfg.HiddenDim, rng)
	t.lstm = nn.NewLSTM(cfg.HiddenDim, cfg.HiddenDim, cfg.LSTMLayers, rng)
	t.fcOut = nn.NewLinear(cfg.HiddenDim, cfg.NumResponses, rng)
	return t, nil
}

// Topic returns the topic this tracker serves.
func (t *Tracker) Topic() string { return t.cfg.Topic }

// SetMode switches between training and evaluation behavior.
func (t *Tracker) SetMode(m nn.Mode) { t.mode = m }

// Output is the result of one forward pass. LogProbs rows align with
// Batch.PackedRows.
type Output struct {
	LogProbs [][]float64

	// Loss is the mean negative log-likelihood over all rows. Set only
	// when the batch carried ground-truth targets for the topic.
	Loss    float64
	HasLoss bool
}

// Forward scores every real turn in the batch. A batch without
// ground-truth targets degrades to plain inference output rather than
// failing, so training and evaluation share the same entry point.
func (t *Tracker) Forward(ctx context.Context, b *dialog.Batch) (*Output, error) {
	rows := b.PackedRows()
	if len(rows) == 0 {
		return &Output{}, nil
	}

	us := make([]encoder.Utterance, len(rows))
	for i, r := range rows {
		us[i] = encoder.Utterance{
			TokenIDs: b.Tokens[r.Dialog][r.Turn],
			Mask:     b.Masks[r.Dialog][r.Turn],
			Text:     b.Texts[r.Dialog][r.Turn],
		}
	}
	pooled, err := t.cfg.Encoder.EncodeBatch(ctx, us)
	if err != nil {
		return nil, fmt.Errorf("tracker: %s: encode: %w", t.cfg.Topic, err)
	}

	packed := make([][]float64, len(rows))
	for i, r := range rows {
		emb := t.entityEmbedding(b.Entities[r.Dialog][r.Turn])
		x := make([]float64, 0, len(pooled[i])+len(emb)+1)
		x = append(x, pooled[i]...)
		x = append(x, emb...)
		x = append(x, b.Sentiments[r.Dialog][r.Turn])
		packed[i] = t.fcDialog.Forward(x)
	}

	hidden := t.lstm.Forward(packed, b.BatchSizes)
	logits := t.fcOut.ForwardBatch(hidden)

	out := &Output{LogProbs: make([][]float64, len(rows))}
	for i, r := range rows {
		if t.mode == nn.Train {
			out.LogProbs[i] = nn.LogSoftmax(logits[i])
			continue
		}
		probs := nn.Softmax(logits[i])
		mask := t.legalMask(b, r)
		lp := make([]float64, len(probs))
		for j, p := range probs {
			lp[j] = math.Log(p*mask[j] + maskFloor)
		}
		out.LogProbs[i] = lp
	}

	if b.HasResponse(t.cfg.Topic) {
		targets := make([]int, len(rows))
		for i, r := range rows {
			targets[i] = b.Responses[t.cfg.Topic][r.Dialog][r.Turn]
		}
		out.Loss = nn.NLLLoss(out.LogProbs, targets)
		out.HasLoss = true
	}
	return out, nil
}

// Predict returns the argmax template ID per packed row.
func (t *Tracker) Predict(ctx context.Context, b *dialog.Batch) ([]int, error) {
	out, err := t.Forward(ctx, b)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(out.LogProbs))
	for i, row := range out.LogProbs {
		ids[i] = argmax(row)
	}
	return ids, nil
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}

// entityEmbedding runs the entity feature through the embedding stack.
func (t *Tracker) entityEmbedding(feature []float64) []float64 {
	x := feature
	for i, fc := range t.fcEntity {
		x = fc.Forward(x)
		if i < len(t.fcEntity)-1 {
			relu(x)
		}
	}
	return t.drop.Forward(x, t.mode)
}

func relu(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// legalMask returns the template legality vector for a row, or all-ones
// when the batch carries none.
func (t *Tracker) legalMask(b *dialog.Batch, r dialog.PackedRow) []float64 {
	if ms, ok := b.ResponseMasks[t.cfg.Topic]; ok {
		if m := ms[r.Dialog][r.Turn]; len(m) == t.cfg.NumResponses {
			return m
		}
	}
	ones := make([]float64, t.cfg.NumResponses)
	for i := range ones {
		ones[i] = 1
	}
	return ones
}

// State is the serializable form of a tracker.
type State struct {
	Entity []nn.LinearState `msgpack:"entity"`
	Dialog nn.LinearState   `msgpack:"dialog"`
	LSTM   nn.LSTMState     `msgpack:"lstm"`
	Out    nn.LinearState   `msgpack:"out"`
}

// Save writes the tracker weights to a checkpoint file.
func (t *Tracker) Save(path string) error {
	s := State{
		Dialog: t.fcDialog.State(),
		LSTM:   t.lstm.State(),
		Out:    t.fcOut.State(),
	}
	for _, fc := range t.fcEntity {
		s.Entity = append(s.Entity, fc.State())
	}
	return nn.SaveCheckpoint(path, &s)
}

// Load restores tracker weights from a checkpoint file.
func (t *Tracker) Load(path string) error {
	var s State
	if err := nn.LoadCheckpoint(path, &s); err != nil {
		return err
	}
	if len(s.Entity) != len(t.fcEntity) {
		return fmt.Errorf("tracker: %s: entity stack depth mismatch: have %d, checkpoint %d",
			t.cfg.Topic, len(t.fcEntity), len(s.Entity))
	}
	for i, fc := range t.fcEntity {
		if err := fc.LoadState(s.Entity[i]); err != nil {
			return err
		}
	}
	if err := t.fcDialog.LoadState(s.Dialog); err != nil {
		return err
	}
	if err := t.lstm.LoadState(s.LSTM); err != nil {
		return err
	}
	return t.fcOut.LoadState(s.Out)
}
