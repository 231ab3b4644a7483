package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/elsabot/elsabot/pkg/kv"
)

func newTestStore(t *testing.T) kv.Store {
	t.Helper()
	s := kv.NewMemory()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := kv.Key{"entity", "name", "TOPIC"}
	val := []byte("7")

	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("Get = %q, want %q", got, val)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key is a no-op.
	if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	put := func(k kv.Key, v string) {
		if err := s.Set(ctx, k, []byte(v)); err != nil {
			t.Fatalf("Set %v: %v", k, err)
		}
	}
	put(kv.Key{"entity", "name", "CITY"}, "0")
	put(kv.Key{"entity", "name", "TOPIC"}, "1")
	put(kv.Key{"entity", "value", "0"}, "paris")
	put(kv.Key{"vocab", "hello"}, "4")

	entries, err := s.List(ctx, kv.Key{"entity", "name"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	// Lexicographic by encoded key.
	if entries[0].Key.String() != "entity:name:CITY" || entries[1].Key.String() != "entity:name:TOPIC" {
		t.Fatalf("unexpected order: %v, %v", entries[0].Key, entries[1].Key)
	}

	// Prefix must match whole segments: "entity:name" does not match
	// a hypothetical "entity:names" key.
	put(kv.Key{"entity", "names"}, "x")
	entries, err = s.List(ctx, kv.Key{"entity", "name"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("segment-boundary prefix matched %d entries, want 2", len(entries))
	}
}

func TestBatchSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []kv.Entry{
		{Key: kv.Key{"t", "a"}, Value: []byte("1")},
		{Key: kv.Key{"t", "b"}, Value: []byte("2")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	got, err := s.List(ctx, kv.Key{"t"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestBadgerInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := kv.OpenBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	key := kv.Key{"resp", "tmpl", "3"}
	if err := s.Set(ctx, key, []byte("hello")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Get = %q, want %q", got, "hello")
	}

	if err := s.BatchSet(ctx, []kv.Entry{
		{Key: kv.Key{"resp", "tmpl", "4"}, Value: []byte("a")},
		{Key: kv.Key{"resp", "tmpl", "5"}, Value: []byte("b")},
	}); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	entries, err := s.List(ctx, kv.Key{"resp", "tmpl"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
}

func TestKeyChild(t *testing.T) {
	base := kv.Key{"entity"}
	child := base.Child("name", "TOPIC")
	if child.String() != "entity:name:TOPIC" {
		t.Fatalf("Child = %q", child.String())
	}
	if base.String() != "entity" {
		t.Fatalf("base mutated: %q", base.String())
	}
}
