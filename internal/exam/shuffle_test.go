package exam

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func idSet(order []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		set[id] = true
	}
	return set
}

func TestShuffledClonePreservesQuestionSet(t *testing.T) {
	test := buildTest(10, 1, 1, 60)
	rng := rand.New(rand.NewSource(7))

	shuffled := ShuffledClone(test, rng)

	if shuffled.QuestionCount() != test.QuestionCount() {
		t.Fatalf("question count changed: %d -> %d", test.QuestionCount(), shuffled.QuestionCount())
	}

	before := idSet(FlattenOrder(test))
	for _, id := range FlattenOrder(shuffled) {
		if !before[id] {
			t.Errorf("shuffled set contains unknown question %s", id)
		}
	}

	// Questions stay inside their section.
	if len(shuffled.Sections[1].Questions) != 1 {
		t.Errorf("section sizes changed: %d", len(shuffled.Sections[1].Questions))
	}
}

func TestShuffledCloneDoesNotTouchOriginal(t *testing.T) {
	test := buildTest(10, 1, 0, 60)
	original := FlattenOrder(test)

	rng := rand.New(rand.NewSource(7))
	_ = ShuffledClone(test, rng)

	after := FlattenOrder(test)
	for i := range original {
		if original[i] != after[i] {
			t.Fatalf("original order mutated at %d", i)
		}
	}
}

func TestApplyOrderRestoresShuffle(t *testing.T) {
	test := buildTest(10, 1, 0, 60)
	rng := rand.New(rand.NewSource(99))

	shuffled := ShuffledClone(test, rng)
	persisted := FlattenOrder(shuffled)

	// A reload starts from the canonical definition plus the persisted order.
	restored := ApplyOrder(test, persisted)
	got := FlattenOrder(restored)

	if len(got) != len(persisted) {
		t.Fatalf("restored %d questions, want %d", len(got), len(persisted))
	}
	for i := range persisted {
		if got[i] != persisted[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], persisted[i])
		}
	}
}

func TestApplyOrderUnknownIDsSinkToEnd(t *testing.T) {
	test := buildTest(4, 1, 0, 60)
	full := FlattenOrder(test)

	// Persisted order covering only the last two questions, reversed.
	partial := []uuid.UUID{full[3], full[2]}
	restored := ApplyOrder(test, partial)
	got := FlattenOrder(restored)

	if got[0] != full[3] || got[1] != full[2] {
		t.Errorf("ranked questions not first: %v", got[:2])
	}
	// Unranked questions keep their relative order at the end.
	if got[2] != full[0] || got[3] != full[1] {
		t.Errorf("unranked questions out of order: %v", got[2:])
	}
}
