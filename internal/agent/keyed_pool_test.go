package agent

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/utils"
	"sync"
	"testing"
)

func TestKeyedPoolOrdersJobsPerKey(t *testing.T) {
	pool := NewKeyedPool(4, 8)
	pool.Start(context.Background())

	var mu sync.Mutex
	got := map[string][]int{}
	keys := []string{"conv-a", "conv-b", "conv-c"}
	for i := 0; i < 50; i++ {
		for _, key := range keys {
			key, i := key, i
			err := pool.Submit(context.Background(), key, func(context.Context) {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
	}
	pool.Close()

	for _, key := range keys {
		seq := got[key]
		if len(seq) != 50 {
			t.Fatalf("%s: expected 50 jobs, got %d", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Errorf("%s: job %d ran at position %d", key, v, i)
				break
			}
		}
	}
}

func TestKeyedPoolRejectsAfterClose(t *testing.T) {
	pool := NewKeyedPool(1, 1)
	pool.Start(context.Background())
	pool.Close()

	err := pool.Submit(context.Background(), "conv", func(context.Context) {})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(2)

	if d.Seen("a") || d.Seen("b") {
		t.Fatal("first sightings reported as duplicates")
	}
	if !d.Seen("a") {
		t.Error("expected a to be a duplicate")
	}
	if d.Seen("c") {
		t.Error("c is new")
	}
	if d.Seen("a") {
		t.Error("a should have left the window")
	}
	if d.Seen("") || d.Seen("") {
		t.Error("empty ids are never duplicates")
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(4)
	for i := 0; i < 3; i++ {
		h.Append("conv", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := h.Get("conv")
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[0].Role != utils.RoleUser || turns[0].Content != "q1" {
		t.Errorf("expected oldest kept turn to be q1, got %+v", turns[0])
	}
	if turns[3].Role != utils.RoleAssistant || turns[3].Content != "a2" {
		t.Errorf("expected newest turn to be a2, got %+v", turns[3])
	}
	if len(h.Get("other")) != 0 {
		t.Error("conversations must not share history")
	}

	h.Reset("conv")
	if len(h.Get("conv")) != 0 {
		t.Error("expected history to be cleared")
	}
}
