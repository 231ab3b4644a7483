package entity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/kv"
)

func TestNameIDStable(t *testing.T) {
	idx := entity.NewIndex()

	a := idx.NameID("TOPIC")
	b := idx.NameID("CITY")
	if a == b {
		t.Fatalf("distinct names share ID %d", a)
	}
	for i := 0; i < 3; i++ {
		if got := idx.NameID("TOPIC"); got != a {
			t.Fatalf("NameID(TOPIC) = %d on call %d, want %d", got, i, a)
		}
	}
}

func TestValueTypeConflict(t *testing.T) {
	idx := entity.NewIndex()
	nameID := idx.NameID("CITY")

	id, ok := idx.ValueID(nameID, "paris")
	if !ok {
		t.Fatalf("first value rejected")
	}

	// CITY is now a string entity; a number must be rejected.
	if _, ok := idx.ValueID(nameID, "42"); ok {
		t.Fatalf("number accepted for string-typed name")
	}

	// The rejection must not have mutated state.
	got, ok := idx.ValueID(nameID, "paris")
	if !ok || got != id {
		t.Fatalf("ValueID(paris) = (%d, %v) after rejection, want (%d, true)", got, ok, id)
	}

	// And the other direction: a number-typed name rejects strings.
	countID := idx.NameID("COUNT")
	if _, ok := idx.ValueID(countID, "3"); !ok {
		t.Fatalf("number rejected for fresh name")
	}
	if _, ok := idx.ValueID(countID, "three"); ok {
		t.Fatalf("string accepted for number-typed name")
	}
}

func TestValueIDMonotonic(t *testing.T) {
	idx := entity.NewIndex()
	nameID := idx.NameID("CITY")

	a, _ := idx.ValueID(nameID, "paris")
	b, _ := idx.ValueID(nameID, "tokyo")
	if b <= a {
		t.Fatalf("value IDs not monotonic: %d then %d", a, b)
	}
	if got, _ := idx.ValueID(nameID, "paris"); got != a {
		t.Fatalf("existing value reassigned: %d, want %d", got, a)
	}
}

func TestFeature(t *testing.T) {
	idx := entity.NewIndex()
	idx.NameID("TOPIC") // ID 0
	idx.NameID("CITY")  // ID 1

	feature, err := idx.Feature([]string{"TOPIC", "CITY"}, 8)
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	if len(feature) != 8 {
		t.Fatalf("feature width %d, want 8", len(feature))
	}
	if feature[0] != 1 || feature[1] != 1 {
		t.Fatalf("feature = %v", feature)
	}
	for i := 2; i < 8; i++ {
		if feature[i] != 0 {
			t.Fatalf("feature[%d] = %f, want 0", i, feature[i])
		}
	}
}

func TestFeatureWidthOverflow(t *testing.T) {
	idx := entity.NewIndex()
	names := []string{"A", "B", "C"}
	for _, n := range names {
		idx.NameID(n)
	}
	_, err := idx.Feature(names, 2)
	if !errors.Is(err, entity.ErrFeatureWidth) {
		t.Fatalf("expected ErrFeatureWidth, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	idx := entity.NewIndex()
	topicID := idx.NameID("TOPIC")
	cityID := idx.NameID("CITY")
	parisID, _ := idx.ValueID(cityID, "paris")
	if err := idx.Save(ctx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	idx2, err := entity.Load(ctx, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := idx2.NameID("TOPIC"); got != topicID {
		t.Fatalf("reloaded NameID(TOPIC) = %d, want %d", got, topicID)
	}
	if got := idx2.NameID("CITY"); got != cityID {
		t.Fatalf("reloaded NameID(CITY) = %d, want %d", got, cityID)
	}
	if got, ok := idx2.ValueID(cityID, "paris"); !ok || got != parisID {
		t.Fatalf("reloaded ValueID(paris) = (%d, %v), want (%d, true)", got, ok, parisID)
	}
	// Type constraint survives the round trip.
	if _, ok := idx2.ValueID(cityID, "99"); ok {
		t.Fatalf("type constraint lost across reload")
	}
	// Fresh allocations continue past the loaded range.
	if got := idx2.NameID("DATE"); got <= cityID {
		t.Fatalf("post-reload name ID %d not monotonic", got)
	}
}

func TestLoadMissingStore(t *testing.T) {
	idx, err := entity.Load(context.Background(), kv.NewMemory())
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("fresh index has %d names", idx.Len())
	}
}

func TestMap(t *testing.T) {
	idx := entity.NewIndex()
	ids := idx.Map(map[string][]string{
		"CITY": {"paris", "tokyo"},
	})
	cityID := idx.NameID("CITY")
	if got := ids[cityID]; len(got) != 2 {
		t.Fatalf("Map values = %v", got)
	}
}
