package tracker_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/encoder"
	"github.com/elsabot/elsabot/pkg/nn"
	"github.com/elsabot/elsabot/pkg/tracker"
)

func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.New(tracker.Config{
		Topic:          "goal",
		Encoder:        encoder.NewHash(16),
		NumResponses:   4,
		MaxEntityTypes: 8,
		EntityEmbDim:   6,
		HiddenDim:      12,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func testStatus(sentiment float64, legal []float64) *dialog.Status {
	return &dialog.Status{
		Entities:      map[string]string{},
		EntityFeature: []float64{1, 0, 1, 0, 0, 0, 0, 0},
		Utterance:     []int{1, 5, 6, 2, 0, 0},
		UtteranceMask: []int{1, 1, 1, 1, 0, 0},
		UtteranceText: "hello there",
		Sentiment:     sentiment,
		Topic:         "goal",
		ResponseMask:  map[string][]float64{"goal": legal},
		Response:      map[string]int{},
	}
}

func testBatch(turns int) *dialog.Batch {
	h := make([]*dialog.Status, turns)
	for i := range h {
		h[i] = testStatus(0.2, []float64{1, 0, 1, 0})
	}
	return dialog.Assemble([][]*dialog.Status{h}, []int{0}, []string{"goal"}, 20, 0.95)
}

func TestForwardShapes(t *testing.T) {
	tr := newTestTracker(t)
	b := testBatch(3)

	out, err := tr.Forward(context.Background(), b)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(out.LogProbs) != 3 {
		t.Fatalf("rows = %d, want 3", len(out.LogProbs))
	}
	for _, row := range out.LogProbs {
		if len(row) != 4 {
			t.Fatalf("row width = %d, want 4", len(row))
		}
	}
	if out.HasLoss {
		t.Fatalf("loss reported without targets")
	}
}

func TestEvalMaskKeepsLogsFinite(t *testing.T) {
	tr := newTestTracker(t)
	b := testBatch(1)

	out, err := tr.Forward(context.Background(), b)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	row := out.LogProbs[0]
	for j, v := range row {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Fatalf("log prob %d not finite: %f", j, v)
		}
	}
	// Illegal templates score far below legal ones.
	if row[1] >= row[0] || row[3] >= row[2] {
		t.Fatalf("mask did not suppress illegal templates: %v", row)
	}
}

func TestPredictHonorsMask(t *testing.T) {
	tr := newTestTracker(t)
	// Only template 2 is legal.
	h := []*dialog.Status{testStatus(0.2, []float64{0, 0, 1, 0})}
	b := dialog.Assemble([][]*dialog.Status{h}, []int{0}, []string{"goal"}, 20, 0.95)

	ids, err := tr.Predict(context.Background(), b)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("Predict = %v, want [2]", ids)
	}
}

func TestTrainLossWithTargets(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetMode(nn.Train)

	h := []*dialog.Status{
		testStatus(0.2, []float64{1, 1, 1, 1}),
		testStatus(-0.1, []float64{1, 1, 1, 1}),
	}
	h[0].Response["goal"] = 1
	h[1].Response["goal"] = 3
	b := dialog.Assemble([][]*dialog.Status{h}, []int{0}, []string{"goal"}, 20, 0.95)

	out, err := tr.Forward(context.Background(), b)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !out.HasLoss {
		t.Fatalf("targets present but no loss")
	}
	if out.Loss <= 0 || math.IsNaN(out.Loss) {
		t.Fatalf("loss = %f", out.Loss)
	}
}

func TestTrainWithoutTargetsDegrades(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetMode(nn.Train)

	out, err := tr.Forward(context.Background(), testBatch(2))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.HasLoss {
		t.Fatalf("loss reported without targets")
	}
	if len(out.LogProbs) != 2 {
		t.Fatalf("rows = %d, want 2", len(out.LogProbs))
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	a := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "goal.ckpt")
	if err := a.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := tracker.New(tracker.Config{
		Topic:          "goal",
		Encoder:        encoder.NewHash(16),
		NumResponses:   4,
		MaxEntityTypes: 8,
		EntityEmbDim:   6,
		HiddenDim:      12,
		Seed:           99, // different init, must be overwritten by Load
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	batch := testBatch(2)
	outA, err := a.Forward(context.Background(), batch)
	if err != nil {
		t.Fatalf("Forward a: %v", err)
	}
	outB, err := b.Forward(context.Background(), batch)
	if err != nil {
		t.Fatalf("Forward b: %v", err)
	}
	for i := range outA.LogProbs {
		for j := range outA.LogProbs[i] {
			if math.Abs(outA.LogProbs[i][j]-outB.LogProbs[i][j]) > 1e-12 {
				t.Fatalf("outputs diverge at (%d,%d)", i, j)
			}
		}
	}
}
