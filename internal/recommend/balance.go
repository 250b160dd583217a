package recommend

import (
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
)

// Buckets is a rank-preserving partition of search candidates.
type Buckets struct {
	Knowledge   []*catalog.Record
	Personality []*catalog.Record
	Other       []*catalog.Record
}

// Partition splits candidates into knowledge, personality and other buckets.
// A record tagged with both a knowledge and a personality type counts as
// knowledge.
func Partition(candidates []*catalog.Record) Buckets {
	var b Buckets
	for _, record := range candidates {
		switch {
		case record.HasType(catalog.TypeKnowledge, catalog.TypeCognitive):
			b.Knowledge = append(b.Knowledge, record)
		case record.HasType(catalog.TypePersonality):
			b.Personality = append(b.Personality, record)
		default:
			b.Other = append(b.Other, record)
		}
	}
	return b
}

// Balance returns at most target records. When the candidates contain both
// knowledge and personality records it takes target/2 of each, knowledge
// first, and fills the remaining slots from the other bucket. Otherwise it
// returns the first target candidates unchanged.
func Balance(candidates []*catalog.Record, target int) []*catalog.Record {
	if target <= 0 {
		return []*catalog.Record{}
	}

	b := Partition(candidates)
	if len(b.Knowledge) == 0 || len(b.Personality) == 0 {
		return take(candidates, target)
	}

	half := target / 2
	balanced := make([]*catalog.Record, 0, target)
	balanced = append(balanced, take(b.Knowledge, half)...)
	balanced = append(balanced, take(b.Personality, half)...)
	balanced = append(balanced, take(b.Other, target-len(balanced))...)

	return take(balanced, target)
}

func take(records []*catalog.Record, n int) []*catalog.Record {
	n = max(0, min(n, len(records)))
	out := make([]*catalog.Record, n)
	copy(out, records[:n])
	return out
}
