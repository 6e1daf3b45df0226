package exam

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

// ShuffledClone returns a session-local copy of the test with each section's
// question list independently permuted (Fisher–Yates). The original is never
// touched. Shuffling happens exactly once per session load; callers persist
// the resulting order and reapply it on reload instead of reshuffling.
func ShuffledClone(t *model.TestDefinition, rng *rand.Rand) *model.TestDefinition {
	dup := t.Clone()
	for i := range dup.Sections {
		qs := dup.Sections[i].Questions
		for k := len(qs) - 1; k > 0; k-- {
			j := rng.Intn(k + 1)
			qs[k], qs[j] = qs[j], qs[k]
		}
	}
	return dup
}

// FlattenOrder lists question IDs in the test's current presentation order.
func FlattenOrder(t *model.TestDefinition) []uuid.UUID {
	order := make([]uuid.UUID, 0, t.QuestionCount())
	for i := range t.Sections {
		for j := range t.Sections[i].Questions {
			order = append(order, t.Sections[i].Questions[j].ID)
		}
	}
	return order
}

// ApplyOrder rearranges a clone of the test so questions appear in the given
// persisted order. Questions missing from the order keep their relative
// position at the end of their section. Used to restore a shuffled session
// after a reload without reshuffling.
func ApplyOrder(t *model.TestDefinition, order []uuid.UUID) *model.TestDefinition {
	rank := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	dup := t.Clone()
	for i := range dup.Sections {
		qs := dup.Sections[i].Questions
		// Stable insertion sort by persisted rank; unknown IDs sink to the end.
		for a := 1; a < len(qs); a++ {
			for b := a; b > 0 && rankOf(rank, qs[b].ID) < rankOf(rank, qs[b-1].ID); b-- {
				qs[b], qs[b-1] = qs[b-1], qs[b]
			}
		}
	}
	return dup
}

func rankOf(rank map[uuid.UUID]int, id uuid.UUID) int {
	if r, ok := rank[id]; ok {
		return r
	}
	return int(^uint(0) >> 1)
}
